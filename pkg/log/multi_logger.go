package log

// MultiLogger fans events out to several loggers. Nil entries are
// skipped. The zero value is usable and behaves like NoopLogger.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger that forwards to each of the
// given loggers in order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log forwards the event to every configured logger.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		if l != nil {
			l.Log(event)
		}
	}
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
