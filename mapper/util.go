package mapper

import (
	"context"
	"log/slog"
)

const LevelTrace slog.Level = slog.LevelDebug - 1

// Trace logs search progress below debug level so production runs stay
// quiet.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
