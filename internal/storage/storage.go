// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"squadbot/internal/model"
)

// ErrNotFound is returned when a record has never been written.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	LoadMotd(ctx context.Context, server string) (string, error)
	SaveMotd(ctx context.Context, server, text string) error

	LoadOptOuts(ctx context.Context, server string) ([]string, error)
	SaveOptOuts(ctx context.Context, server string, users []string) error

	LoadCursor(ctx context.Context) (model.Cursor, error)
	SaveCursor(ctx context.Context, c model.Cursor) error

	Close() error
}
