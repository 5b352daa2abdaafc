package log

import (
	"os"
	"path/filepath"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var _ Logger = &ZapLogger{}

// Config selects the encoder, level and destination of a ZapLogger.
type Config struct {
	Format string `env:"LOG_FORMAT" env-default:"console" yaml:"format" toml:"format"` // console, logfmt or json
	Level  Level  `env:"LOG_LEVEL" env-default:"info" yaml:"level" toml:"level"`
	Output string `env:"LOG_OUTPUT" env-default:"stderr" yaml:"output" toml:"output"` // stderr, stdout or a file path
}

// ZapLogger is a Logger backed by a zap.SugaredLogger.
type ZapLogger struct {
	lg            *zap.SugaredLogger
	keysAndValues []any
}

// NewZapLogger builds a logger from conf. Entries are also copied to any
// extra write syncers, which tests use to capture output.
func NewZapLogger(conf Config, extraWriters ...zapcore.WriteSyncer) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}

	var encoder zapcore.Encoder
	switch conf.Format {
	case "logfmt":
		encoder = namedEncoder{Encoder: zaplogfmt.NewEncoder(encCfg), key: encCfg.NameKey}
	case "json":
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := openSink(conf.Output)
	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(append(extraWriters, sink)...), zapLevel(conf.Level))

	// Skip the ZapLogger method and its log helper.
	return &ZapLogger{lg: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()}
}

// namedEncoder writes the logger name as a regular field, for encoders
// that ignore NameKey.
type namedEncoder struct {
	zapcore.Encoder
	key string
}

func (e namedEncoder) Clone() zapcore.Encoder {
	return namedEncoder{Encoder: e.Encoder.Clone(), key: e.key}
}

func (e namedEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	if ent.LoggerName != "" && e.key != "" {
		fields = append([]zapcore.Field{zap.String(e.key, ent.LoggerName)}, fields...)
	}
	return e.Encoder.EncodeEntry(ent, fields)
}

// openSink falls back to stderr when a log file cannot be opened; the CLI
// writes its results to stdout.
func openSink(output string) zapcore.WriteSyncer {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr)
	case "stdout":
		return zapcore.Lock(os.Stdout)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return zapcore.Lock(os.Stderr)
	}
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return zapcore.Lock(os.Stderr)
	}
	return zapcore.AddSync(f)
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.log(LevelDebug, msg, keysAndValues) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.log(LevelInfo, msg, keysAndValues) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.log(LevelWarn, msg, keysAndValues) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.log(LevelError, msg, keysAndValues) }
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) { l.log(LevelFatal, msg, keysAndValues) }

func (l *ZapLogger) log(level Level, msg string, keysAndValues []any) {
	l.lg.Logw(zapLevel(level), msg, keysAndValues...)
}

func (l *ZapLogger) WithKV(key string, value any) Logger {
	kv := make([]any, 0, len(l.keysAndValues)+2)
	kv = append(kv, l.keysAndValues...)
	return &ZapLogger{
		lg:            l.lg.With(key, value),
		keysAndValues: append(kv, key, value),
	}
}

func (l *ZapLogger) GetAllKV() []any { return l.keysAndValues }

// WithName appends name to the logger name, dot separated.
func (l *ZapLogger) WithName(name string) Logger {
	return &ZapLogger{lg: l.lg.Named(name), keysAndValues: l.keysAndValues}
}

func (l *ZapLogger) Name() string { return l.lg.Desugar().Name() }

func (l *ZapLogger) AddCallerSkip(skip int) Logger {
	return &ZapLogger{lg: l.lg.WithOptions(zap.AddCallerSkip(skip)), keysAndValues: l.keysAndValues}
}

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.lg.Sync() }

func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	case LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
