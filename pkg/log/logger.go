package log

// Logger is the structured logger passed through the signing and RPC layers.
// keysAndValues are alternating keys and values, e.g. "address", addr.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs and may terminate the process.
	Fatal(msg string, keysAndValues ...any)

	// WithKV returns a logger that adds key and value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the pairs added with WithKV.
	GetAllKV() []any
	// WithName returns a logger for a named component.
	WithName(name string) Logger
	Name() string
	// AddCallerSkip returns a logger that reports callers skip frames higher.
	AddCallerSkip(skip int) Logger
}

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

var _ Logger = NoopLogger{}

// NoopLogger discards everything.
type NoopLogger struct{}

// NewNoopLogger returns a logger that discards everything.
func NewNoopLogger() Logger { return NoopLogger{} }

func (NoopLogger) Debug(string, ...any)        {}
func (NoopLogger) Info(string, ...any)         {}
func (NoopLogger) Warn(string, ...any)         {}
func (NoopLogger) Error(string, ...any)        {}
func (NoopLogger) Fatal(string, ...any)        {}
func (n NoopLogger) WithKV(string, any) Logger { return n }
func (NoopLogger) GetAllKV() []any             { return []any{} }
func (n NoopLogger) WithName(string) Logger    { return n }
func (NoopLogger) Name() string                { return "noop" }
func (n NoopLogger) AddCallerSkip(int) Logger  { return n }
