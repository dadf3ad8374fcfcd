package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New 开发模式用彩色控制台输出，生产环境输出 JSON
func New(debug bool) *slog.Logger {
	return newWithWriter(os.Stdout, debug)
}

func newWithWriter(w io.Writer, debug bool) *slog.Logger {
	if debug {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// Setup builds the logger and installs it as the slog default.
func Setup(debug bool) *slog.Logger {
	l := New(debug)
	slog.SetDefault(l)
	return l
}
