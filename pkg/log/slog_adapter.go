package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}

	// Add type-specific attributes
	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated))

	case event.Message != nil:
		attrs = append(attrs, slog.String("msg_type", event.Message.Type))
		if event.Message.ErrorCode != "" {
			attrs = append(attrs, slog.String("error_code", event.Message.ErrorCode))
		}
		if event.Message.Detail != "" {
			attrs = append(attrs, slog.String("detail", event.Message.Detail))
		}

	case event.StateChange != nil:
		if event.StateChange.OldState != "" {
			attrs = append(attrs, slog.String("old_state", event.StateChange.OldState))
		}
		attrs = append(attrs, slog.String("new_state", event.StateChange.NewState))

	case event.Error != nil:
		attrs = append(attrs, slog.String("error", event.Error.Message))
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
