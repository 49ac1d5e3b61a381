package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// daemonLogger wraps slog with the printf-style convenience method the
// teacher's daemon code calls throughout its event loop and health
// checks, alongside the structured Info/Warn/Error methods cobra/daemon
// wiring code prefers.
type daemonLogger struct {
	*slog.Logger
}

// newDaemonLogger builds a logger at the configured level. Normally it
// writes structured JSON lines to a rotating file under
// dataDir/logs/icpcd.log (so a long-running daemon never grows an
// unbounded log); with foreground set it writes text lines to stderr
// instead, and the log file is not written.
func newDaemonLogger(dataDir, level string, foreground bool) daemonLogger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "logs", "icpcd.log"),
		MaxSize:    20, // MB
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	var handler slog.Handler
	if foreground {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: lvl})
	}
	return daemonLogger{Logger: slog.New(handler)}
}

// log is the printf-style convenience method used by code ported from the
// teacher's event loop, where every call site already carries its own
// formatted message rather than structured key/value pairs.
func (l daemonLogger) log(format string, args ...any) {
	if len(args) == 0 {
		l.Info(format)
		return
	}
	l.Info(fmt.Sprintf(format, args...))
}
