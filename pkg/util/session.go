package util

import (
	"context"

	"github.com/google/uuid"
)

type key string

const (
	sessionIDKey = key("session-id")
	symbolKey    = key("symbol")
)

// WithSessionID returns a context with a session id.
// It will generate a new session id if the provided id is empty.
func WithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = generate()
	}

	return context.WithValue(ctx, sessionIDKey, id)
}

// GetSessionID returns session id from context
// will return empty string if not present
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// WithSymbol returns a context carrying the ticker symbol being processed.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey, symbol)
}

// GetSymbol returns symbol from context
// will return empty string if not present
func GetSymbol(ctx context.Context) string {
	symbol, _ := ctx.Value(symbolKey).(string)
	return symbol
}

// generate returns a uuid-v4 string to use as session id
func generate() string {
	return uuid.NewString()
}
