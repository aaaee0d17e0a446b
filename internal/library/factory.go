package library

import (
	"context"
	"strings"
)

// NewStore picks postgres when a database URL is configured, badger when a
// library path is set, and falls back to in-memory.
func NewStore(ctx context.Context, databaseURL, path string) (Store, error) {
	if strings.TrimSpace(databaseURL) != "" {
		return NewPostgresStore(ctx, databaseURL)
	}
	if strings.TrimSpace(path) != "" {
		return NewBadgerStore(path)
	}
	return NewInMemoryStore(), nil
}
