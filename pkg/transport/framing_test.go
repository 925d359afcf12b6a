package transport

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/tablewire/tablewire-go/pkg/log"
)

// captureLogger records events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(ev log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *captureLogger) all() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, 0, nil, "")
	r := NewFrameReader(&buf, 0, nil, "")

	payloads := [][]byte{
		[]byte(`{"message_type":"HANDSHAKE"}`),
		[]byte("x"),
		bytes.Repeat([]byte("a"), 1000),
	}
	for _, p := range payloads {
		if err := w.WriteFrame(p); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	for i, want := range payloads {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: got %q, want %q", i, got, want)
		}
	}
}

func TestWriteFrameRejectsEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, 0, nil, "")

	if err := w.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected frame wrote %d bytes", buf.Len())
	}
}

func TestWriteFrameRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, 16, nil, "")

	if err := w.WriteFrame(bytes.Repeat([]byte("a"), 17)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("rejected frame wrote %d bytes", buf.Len())
	}
}

func TestReadFrameRejectsOversizedPrefix(t *testing.T) {
	var buf bytes.Buffer
	w := NewFrameWriter(&buf, 0, nil, "")
	if err := w.WriteFrame(bytes.Repeat([]byte("a"), 100)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	r := NewFrameReader(&buf, 64, nil, "")
	if _, err := r.ReadFrame(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	r := NewFrameReader(bytes.NewReader([]byte{0, 0, 0, 0}), 0, nil, "")
	if _, err := r.ReadFrame(); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("expected ErrMessageEmpty, got %v", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	// Prefix announces 10 bytes, only 3 follow.
	data := []byte{0, 0, 0, 10, 'a', 'b', 'c'}
	r := NewFrameReader(bytes.NewReader(data), 0, nil, "")
	if _, err := r.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("expected ErrFrameTruncated, got %v", err)
	}

	// Prefix itself cut short.
	r = NewFrameReader(bytes.NewReader([]byte{0, 0}), 0, nil, "")
	if _, err := r.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("expected ErrFrameTruncated, got %v", err)
	}
}

func TestReadFrameCleanEOF(t *testing.T) {
	r := NewFrameReader(bytes.NewReader(nil), 0, nil, "")
	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestFrameLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := &captureLogger{}
	w := NewFrameWriter(&buf, 0, logger, "conn-42")
	r := NewFrameReader(&buf, 0, logger, "conn-42")

	payload := []byte(`{"message_type":"ACTION"}`)
	if err := w.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if _, err := r.ReadFrame(); err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}

	events := logger.all()
	if len(events) != 2 {
		t.Fatalf("expected 2 frame events, got %d", len(events))
	}
	for i, dir := range []log.Direction{log.DirectionOut, log.DirectionIn} {
		ev := events[i]
		if ev.Direction != dir {
			t.Errorf("event %d direction: got %v, want %v", i, ev.Direction, dir)
		}
		if ev.ConnectionID != "conn-42" {
			t.Errorf("event %d connection id: got %q", i, ev.ConnectionID)
		}
		if ev.Layer != log.LayerTransport {
			t.Errorf("event %d layer: got %v", i, ev.Layer)
		}
		if ev.Frame == nil {
			t.Fatalf("event %d has no frame payload", i)
		}
		if want := LengthPrefixSize + len(payload); ev.Frame.Size != want {
			t.Errorf("event %d size: got %d, want %d", i, ev.Frame.Size, want)
		}
	}
}

func TestFrameLoggingTruncatesLargePayloads(t *testing.T) {
	var buf bytes.Buffer
	logger := &captureLogger{}
	w := NewFrameWriter(&buf, 0, logger, "conn-1")

	payload := bytes.Repeat([]byte("z"), MaxLogFrameDataSize+100)
	if err := w.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	events := logger.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if !ev.Frame.Truncated {
		t.Error("frame event not marked truncated")
	}
	if len(ev.Frame.Data) != MaxLogFrameDataSize {
		t.Errorf("logged data: got %d bytes, want %d", len(ev.Frame.Data), MaxLogFrameDataSize)
	}
}
