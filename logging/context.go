package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKeyType int

const debugKeyID = debugKeyType(iota)

// EnableDebugMode returns a context under which the C-prefixed logging methods log at every
// level. The key names the debug session in logs; an empty key gets a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKeyID, key)
}

// IsDebugMode reports whether ctx, or a parent of it, was passed through EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	return DebugKey(ctx) != ""
}

// DebugKey returns the key debug mode was enabled with, or "".
func DebugKey(ctx context.Context) string {
	if key, ok := ctx.Value(debugKeyID).(string); ok {
		return key
	}
	return ""
}
