package hyperrelay

// Level represents the severity of a lifecycle log message.
type Level uint8

const (
	// DebugLevel represents debugging information.
	DebugLevel Level = iota
	// InfoLevel represents general operational information.
	InfoLevel
	// WarnLevel represents warning messages.
	WarnLevel
	// ErrorLevel represents error messages.
	ErrorLevel
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// IsValid returns true if the given Level is a valid log level, and false otherwise.
func (l Level) IsValid() bool {
	return l <= ErrorLevel
}

// Field represents a key-value pair in structured logging.
type Field struct {
	Key   string
	Value any
}

// Logger is the structured logger relays use for lifecycle diagnostics.
// Record-level failures go to the FailureListener, not here.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// WithFields returns a logger that adds fields to every entry.
	WithFields(fields ...Field) Logger
}

// NoopLogger is a logger that does nothing.
type NoopLogger struct{}

// NewNoop creates a new NoopLogger.
func NewNoop() Logger {
	return NoopLogger{}
}

// Debug implements Logger.
func (NoopLogger) Debug(string, ...Field) {}

// Info implements Logger.
func (NoopLogger) Info(string, ...Field) {}

// Warn implements Logger.
func (NoopLogger) Warn(string, ...Field) {}

// Error implements Logger.
func (NoopLogger) Error(string, ...Field) {}

// WithFields returns the same logger.
func (l NoopLogger) WithFields(...Field) Logger { return l }

var _ Logger = NoopLogger{}
