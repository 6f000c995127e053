// High level log wrapper, so it can output different log based on level.
//
// There are five levels in total: FATAL, ERROR, WARNING, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevel()
// - set environment variable `LOG_LEVEL`
//
// Records go to stderr unless SetOutput redirects them; stdout is left to the
// simulator's result stream.

package log

import (
	"io"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel = zapcore.Level

const (
	LOG_LEVEL_FATAL = zapcore.FatalLevel
	LOG_LEVEL_ERROR = zapcore.ErrorLevel
	LOG_LEVEL_WARN  = zapcore.WarnLevel
	LOG_LEVEL_INFO  = zapcore.InfoLevel
	LOG_LEVEL_DEBUG = zapcore.DebugLevel
	LOG_LEVEL_ALL   = LOG_LEVEL_DEBUG
)

var _log = New()

func init() {
	SetHighlighting(runtime.GOOS != "windows")
}

func SetLevel(level LogLevel) {
	_log.SetLevel(level)
}

func GetLogLevel() LogLevel {
	return _log.level.Level()
}

func SetLevelByString(level string) {
	_log.SetLevelByString(level)
}

func SetHighlighting(highlighting bool) {
	_log.SetHighlighting(highlighting)
}

// SetOutput redirects the global logger. The writer is wrapped with
// zapcore.AddSync, so a lumberjack.Logger can be passed directly.
func SetOutput(w io.Writer) {
	_log.SetOutput(w)
}

func Info(v ...interface{}) {
	_log.Info(v...)
}

func Infof(format string, v ...interface{}) {
	_log.Infof(format, v...)
}

func Panic(v ...interface{}) {
	_log.Panic(v...)
}

func Panicf(format string, v ...interface{}) {
	_log.Panicf(format, v...)
}

func Debug(v ...interface{}) {
	_log.Debug(v...)
}

func Debugf(format string, v ...interface{}) {
	_log.Debugf(format, v...)
}

func Warn(v ...interface{}) {
	_log.Warning(v...)
}

func Warnf(format string, v ...interface{}) {
	_log.Warningf(format, v...)
}

func Warning(v ...interface{}) {
	_log.Warning(v...)
}

func Warningf(format string, v ...interface{}) {
	_log.Warningf(format, v...)
}

func Error(v ...interface{}) {
	_log.Error(v...)
}

func Errorf(format string, v ...interface{}) {
	_log.Errorf(format, v...)
}

func Fatal(v ...interface{}) {
	_log.Fatal(v...)
}

func Fatalf(format string, v ...interface{}) {
	_log.Fatalf(format, v...)
}

// Sync flushes buffered records of the global logger.
func Sync() error {
	return _log.Sync()
}

type Logger struct {
	mu           sync.Mutex
	out          io.Writer
	level        zap.AtomicLevel
	highlighting bool
	sugar        *zap.SugaredLogger
}

func (l *Logger) SetHighlighting(highlighting bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.highlighting = highlighting
	l.rebuild()
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
	l.rebuild()
}

func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level)
}

func (l *Logger) SetLevelByString(level string) {
	l.level.SetLevel(StringToLogLevel(level))
}

// rebuild must be called with l.mu held.
func (l *Logger) rebuild() {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if l.highlighting {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(l.out), l.level)
	// Two frames: the package-level helper and the Logger method.
	l.sugar = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2)).Sugar()
}

func (l *Logger) logger() *zap.SugaredLogger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sugar
}

func (l *Logger) Fatal(v ...interface{}) {
	l.logger().Fatal(v...)
}

func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logger().Fatalf(format, v...)
}

func (l *Logger) Panic(v ...interface{}) {
	l.logger().Panic(v...)
}

func (l *Logger) Panicf(format string, v ...interface{}) {
	l.logger().Panicf(format, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.logger().Error(v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logger().Errorf(format, v...)
}

func (l *Logger) Warning(v ...interface{}) {
	l.logger().Warn(v...)
}

func (l *Logger) Warningf(format string, v ...interface{}) {
	l.logger().Warnf(format, v...)
}

func (l *Logger) Debug(v ...interface{}) {
	l.logger().Debug(v...)
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logger().Debugf(format, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.logger().Info(v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.logger().Infof(format, v...)
}

func (l *Logger) Sync() error {
	return l.logger().Sync()
}

func StringToLogLevel(level string) LogLevel {
	switch level {
	case "fatal":
		return LOG_LEVEL_FATAL
	case "error":
		return LOG_LEVEL_ERROR
	case "warn":
		return LOG_LEVEL_WARN
	case "warning":
		return LOG_LEVEL_WARN
	case "debug":
		return LOG_LEVEL_DEBUG
	case "info":
		return LOG_LEVEL_INFO
	}
	return LOG_LEVEL_ALL
}

func New() *Logger {
	return NewLogger(os.Stderr)
}

func NewLogger(w io.Writer) *Logger {
	level := LOG_LEVEL_INFO
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		level = StringToLogLevel(l)
	}
	l := &Logger{out: w, level: zap.NewAtomicLevelAt(level)}
	l.rebuild()
	return l
}
