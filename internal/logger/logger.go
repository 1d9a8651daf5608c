// Package logger はJSON構造化ログの出力設定を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel は LOG_LEVEL の値を slog.Level に変換する。
// 未知の値は info として扱い、false を返す。
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定し、そのロガーを返す。
// w が nil の場合は os.Stdout に出力する。
func SetupDefault(w io.Writer, levelName string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level, ok := ParseLevel(levelName)
	logger := Setup(w, level)
	slog.SetDefault(logger)
	if !ok {
		logger.Warn("unknown log level, falling back to info", slog.String("level", levelName))
	}
	return logger
}
