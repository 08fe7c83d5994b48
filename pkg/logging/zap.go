package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ZapLogger implements the Logger interface using uber-go/zap.
type ZapLogger struct {
	logger *zap.Logger
	fields []Field
}

// Option configures the zap-backed logger.
type Option func(*options)

type options struct {
	development bool
	level       zapcore.Level
	filePath    string
	fileMaxMB   int
	fileBackups int
}

func defaultOptions() *options {
	return &options{
		level:       zapcore.InfoLevel,
		fileMaxMB:   50,
		fileBackups: 3,
	}
}

// WithDevelopmentMode switches to zap's console-friendly development output.
func WithDevelopmentMode() Option {
	return func(o *options) { o.development = true }
}

// WithLevel sets the minimum level that will be logged.
func WithLevel(level Level) Option {
	return func(o *options) {
		switch level {
		case DEBUG:
			o.level = zapcore.DebugLevel
		case WARN:
			o.level = zapcore.WarnLevel
		case ERROR:
			o.level = zapcore.ErrorLevel
		default:
			o.level = zapcore.InfoLevel
		}
	}
}

// WithRotatingFile additionally writes JSON entries to path, rotated by
// lumberjack. The bot runs unattended for days, so file logs are capped
// rather than left to grow without bound.
func WithRotatingFile(path string) Option {
	return func(o *options) { o.filePath = path }
}

// NewLogger creates the default zap-backed Logger.
func NewLogger(opts ...Option) *ZapLogger {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if o.development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	newEncoder := zapcore.NewJSONEncoder
	if o.development {
		newEncoder = zapcore.NewConsoleEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(encoderConfig), zapcore.Lock(os.Stdout), o.level),
	}

	if o.filePath != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.filePath,
			MaxSize:    o.fileMaxMB,
			MaxBackups: o.fileBackups,
		})
		fileEncoder := zap.NewProductionEncoderConfig()
		fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), fileSink, o.level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &ZapLogger{logger: logger}
}

// Debug implements the Logger interface.
func (l *ZapLogger) Debug(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.DebugLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// Info implements the Logger interface.
func (l *ZapLogger) Info(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.InfoLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// Warn implements the Logger interface.
func (l *ZapLogger) Warn(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.WarnLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// Error implements the Logger interface.
func (l *ZapLogger) Error(msg string, fields ...Field) {
	if ce := l.logger.Check(zapcore.ErrorLevel, msg); ce != nil {
		ce.Write(l.convertFields(fields...)...)
	}
}

// WithFields implements the Logger interface.
func (l *ZapLogger) WithFields(fields ...Field) Logger {
	clone := *l
	clone.fields = make([]Field, len(l.fields)+len(fields))
	copy(clone.fields, l.fields)
	copy(clone.fields[len(l.fields):], fields)
	return &clone
}

// Close flushes any buffered log entries.
func (l *ZapLogger) Close() error {
	return l.logger.Sync()
}

func (l *ZapLogger) convertFields(fields ...Field) []zap.Field {
	zapFields := make([]zap.Field, 0, len(l.fields)+len(fields))
	for _, f := range l.fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	for _, f := range fields {
		zapFields = append(zapFields, zap.Any(f.Key, f.Value))
	}
	return zapFields
}
