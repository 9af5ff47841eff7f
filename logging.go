package rigid

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the engine's logging surface. The world calls it from the step
// pipeline, so implementations must be cheap when their level is disabled.
type Logger interface {
	DebugEnabled() bool
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// FileConfig holds rotating-file output settings.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultFileConfig returns default rotation settings for path.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:       path,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 7,
		Compress:   true,
	}
}

// ZapLogger adapts a zap sugared logger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zapcore.Level
}

// NewZapLogger builds a console logger at the given level ("debug", "info",
// "warn", "error"). If fileCfg.Path is set, output also goes to a rotating
// file.
func NewZapLogger(level string, fileCfg FileConfig) *ZapLogger {
	lvl := parseLevel(level)

	encCfg := zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: " ",
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stdout), lvl),
	}

	if fileCfg.Path != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   fileCfg.Path,
			MaxSize:    fileCfg.MaxSizeMB,
			MaxBackups: fileCfg.MaxBackups,
			MaxAge:     fileCfg.MaxAgeDays,
			Compress:   fileCfg.Compress,
			LocalTime:  true,
		}
		fileEncCfg := encCfg
		fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores,
			zapcore.NewCore(zapcore.NewConsoleEncoder(fileEncCfg), zapcore.AddSync(fileWriter), lvl))
	}

	log := zap.New(zapcore.NewTee(cores...))
	return &ZapLogger{sugar: log.Sugar(), level: lvl}
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ZapLogger) DebugEnabled() bool { return l.level <= zapcore.DebugLevel }

func (l *ZapLogger) Debugf(format string, args ...any) { l.sugar.Debugf(format, args...) }
func (l *ZapLogger) Infof(format string, args ...any)  { l.sugar.Infof(format, args...) }
func (l *ZapLogger) Warnf(format string, args ...any)  { l.sugar.Warnf(format, args...) }
func (l *ZapLogger) Errorf(format string, args ...any) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() { _ = l.sugar.Sync() }

type nopLogger struct{}

// NewNopLogger returns a logger that discards everything. It is the world's
// default so the library is silent unless configured.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) DebugEnabled() bool                { return false }
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}
