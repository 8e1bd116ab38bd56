package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log - глобальный логгер. До Initialize пишет в никуда, чтобы пакеты
// можно было использовать в тестах без настройки.
var Log = zap.NewNop()

// Initialize настраивает вывод в консоль и в JSON-файл с ротацией.
// Пустой logFile отключает файловый вывод.
func Initialize(logLevel string, logFile string) error {
	level := parseLogLevel(logLevel)

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		level,
	)
	cores := []zapcore.Core{consoleCore}

	if logFile != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     7, // дней
			Compress:   true,
		})
		jsonConfig := zap.NewProductionEncoderConfig()
		jsonConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(jsonConfig), fileWriter, level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	Log.Info("Logger initialized",
		zap.String("level", level.String()),
		zap.String("file", logFile),
	)
	return nil
}

// Close сбрасывает буферы перед завершением
func Close() error {
	return Log.Sync()
}

// OrDefault возвращает l, а если он nil - глобальный логгер
func OrDefault(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return Log
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func WithUserID(userID string) zap.Field {
	return zap.String("user_id", userID)
}

func WithPostID(postID string) zap.Field {
	return zap.String("post_id", postID)
}

func WithCommentID(commentID string) zap.Field {
	return zap.String("comment_id", commentID)
}
