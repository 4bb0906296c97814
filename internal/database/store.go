// Package database provides access to the newsboat cache database.
package database

import (
	"context"
	"errors"

	"nbserver/internal/model"
)

// ErrNotFound is returned when an item does not exist or is soft-deleted.
var ErrNotFound = errors.New("item not found")

// ListFilter selects which non-deleted items a list query returns.
type ListFilter int

const (
	// FilterAll returns every non-deleted item.
	FilterAll ListFilter = iota
	// FilterUnqualified returns items not yet classified (is_clickbait IS NULL).
	FilterUnqualified
)

// Store defines the operations the API performs against the newsboat cache.
// The HTTP handlers depend on this interface rather than the SQLite
// implementation so tests can substitute their own store.
type Store interface {
	Close() error

	// ListItems returns non-deleted items joined with their parent feed,
	// ordered case-insensitively by feed title.
	ListItems(ctx context.Context, filter ListFilter) ([]model.Item, error)

	// GetItem returns a single non-deleted item, or ErrNotFound.
	GetItem(ctx context.Context, id int64) (*model.Item, error)

	// MarkDeleted soft-deletes an item. ErrNotFound if no live row changed.
	MarkDeleted(ctx context.Context, id int64) error

	// MarkDeletedBatch soft-deletes a set of items in one statement.
	// ErrNotFound if no row changed at all.
	MarkDeletedBatch(ctx context.Context, ids []int64) error

	// GetFlags returns the item's flags, empty string when unset.
	GetFlags(ctx context.Context, id int64) (string, error)

	// SetFlags writes a normalized flags string to a non-deleted item.
	SetFlags(ctx context.Context, id int64, flags string) error

	// ToggleUnread flips the unread bit. Transitioning to unread also
	// removes the star so no starred-and-unread state can exist.
	ToggleUnread(ctx context.Context, id int64) (*model.FlagState, error)

	// SetStarred adds or removes the star. Starring forces unread=0;
	// unstarring leaves unread untouched.
	SetStarred(ctx context.Context, id int64, starred bool) (*model.FlagState, error)
}
