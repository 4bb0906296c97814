package database

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nbserver/internal/model"
)

// newsboatSchema mirrors the tables newsboat creates in its cache db.
// The server never creates these itself, so tests have to.
const newsboatSchema = `
CREATE TABLE rss_feed (
	rssurl VARCHAR(1024) PRIMARY KEY NOT NULL,
	url VARCHAR(1024) NOT NULL,
	title VARCHAR(1024) NOT NULL
);
CREATE TABLE rss_item (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	guid VARCHAR(64) NOT NULL,
	title VARCHAR(1024) NOT NULL,
	author VARCHAR(1024) NOT NULL,
	url VARCHAR(1024) NOT NULL,
	feedurl VARCHAR(1024) NOT NULL,
	pubDate INTEGER NOT NULL,
	content VARCHAR(65535) NOT NULL,
	unread INTEGER(1) NOT NULL,
	deleted INTEGER(1) NOT NULL DEFAULT 0,
	flags VARCHAR(52)
);
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB creates a cache file with the newsboat schema and two feeds
// with three items, then opens it through New so migration runs.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(newsboatSchema)
	require.NoError(t, err)
	_, err = raw.Exec(`
		INSERT INTO rss_feed (rssurl, url, title) VALUES
			('https://example.com/beta.xml', 'https://example.com/beta', 'beta channel'),
			('https://example.com/alpha.xml', 'https://example.com/alpha', 'Alpha Channel');
		INSERT INTO rss_item (guid, title, author, url, feedurl, pubDate, content, unread, deleted, flags) VALUES
			('g1', 'first', 'ann', 'https://youtu.be/abc123XYZ9', 'https://example.com/beta.xml', 1700000000, 'body one', 1, 0, NULL),
			('g2', 'second', 'bob', 'https://example.com/post/2', 'https://example.com/alpha.xml', 1700000100, 'body two', 0, 0, 'S'),
			('g3', 'third', 'cat', 'https://example.com/post/3', 'https://example.com/alpha.xml', 1700000200, 'body three', 1, 1, NULL);
	`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := New(path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewMissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "absent.db"), testLogger())
	assert.Error(t, err)
}

func TestMigrateAddsOptionalColumns(t *testing.T) {
	db := newTestDB(t)

	cols, err := db.columnNames(context.Background(), "rss_item")
	require.NoError(t, err)
	assert.True(t, cols["is_clickbait"])
	assert.True(t, cols["rebait_title"])

	// Running again must be a no-op.
	require.NoError(t, db.migrate(context.Background()))
}

func TestListItems(t *testing.T) {
	db := newTestDB(t)

	items, err := db.ListItems(context.Background(), FilterAll)
	require.NoError(t, err)
	require.Len(t, items, 2) // deleted item excluded

	// Ordered case-insensitively by feed title: Alpha before beta.
	assert.Equal(t, "Alpha Channel", items[0].ChannelName)
	assert.Equal(t, "beta channel", items[1].ChannelName)

	assert.Equal(t, "S", items[0].Flags)
	assert.True(t, items[0].Starred)
	assert.Equal(t, "", items[1].Flags)
	assert.False(t, items[1].Starred)
	assert.Equal(t, model.FormatPubDate(1700000000), items[1].PubDate)
}

func TestListItemsUnqualified(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.conn.Exec("UPDATE rss_item SET is_clickbait = 1 WHERE guid = 'g2'")
	require.NoError(t, err)

	items, err := db.ListItems(ctx, FilterUnqualified)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "first", items[0].Title)
}

func TestGetItem(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	it, err := db.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", it.Title)
	assert.Equal(t, "ann", it.Author)
	assert.True(t, it.Unread)

	_, err = db.GetItem(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	// Soft-deleted rows are invisible.
	_, err = db.GetItem(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkDeleted(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.MarkDeleted(ctx, 1))
	_, err := db.GetItem(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	// Second delete finds no live row.
	assert.ErrorIs(t, db.MarkDeleted(ctx, 1), ErrNotFound)

	// The row itself survives; a direct un-delete restores it unchanged.
	_, err = db.conn.Exec("UPDATE rss_item SET deleted = 0 WHERE id = 1")
	require.NoError(t, err)
	it, err := db.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", it.Title)
}

func TestMarkDeletedBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// One live id among already-deleted and unknown ids still succeeds.
	require.NoError(t, db.MarkDeletedBatch(ctx, []int64{1, 3, 999}))
	_, err := db.GetItem(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, db.MarkDeletedBatch(ctx, []int64{1, 999}), ErrNotFound)
	assert.ErrorIs(t, db.MarkDeletedBatch(ctx, nil), ErrNotFound)
}

func TestFlags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	flags, err := db.GetFlags(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "", flags) // NULL normalizes to empty, never null

	require.NoError(t, db.SetFlags(ctx, 1, "SsAaB"))
	flags, err = db.GetFlags(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ABS", flags)

	// Clearing flags stores NULL again.
	require.NoError(t, db.SetFlags(ctx, 1, ""))
	var stored sql.NullString
	require.NoError(t, db.conn.QueryRow("SELECT flags FROM rss_item WHERE id = 1").Scan(&stored))
	assert.False(t, stored.Valid)

	assert.ErrorIs(t, db.SetFlags(ctx, 3, "S"), ErrNotFound)
	_, err = db.GetFlags(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleUnread(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Item 2 starts starred and read.
	state, err := db.ToggleUnread(ctx, 2)
	require.NoError(t, err)
	assert.True(t, state.Unread)
	assert.Equal(t, "", state.Flags) // transition to unread clears the star
	assert.False(t, state.Starred)

	state, err = db.ToggleUnread(ctx, 2)
	require.NoError(t, err)
	assert.False(t, state.Unread)
	assert.Equal(t, "", state.Flags)

	_, err = db.ToggleUnread(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = db.ToggleUnread(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetStarred(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Starring an unread item forces it read.
	state, err := db.SetStarred(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, state.Starred)
	assert.Equal(t, "S", state.Flags)
	assert.False(t, state.Unread)

	it, err := db.GetItem(ctx, 1)
	require.NoError(t, err)
	assert.False(t, it.Unread)

	// Unstarring leaves unread untouched.
	state, err = db.SetStarred(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, state.Starred)
	assert.Equal(t, "", state.Flags)
	assert.False(t, state.Unread)

	_, err = db.SetStarred(ctx, 999, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

// No mutation sequence may leave an item both starred and unread.
func TestStarredImpliesRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mutate := []func() error{
		func() error { _, err := db.SetStarred(ctx, 1, true); return err },
		func() error { _, err := db.ToggleUnread(ctx, 1); return err },
		func() error { _, err := db.SetStarred(ctx, 1, true); return err },
		func() error { _, err := db.SetStarred(ctx, 1, false); return err },
		func() error { _, err := db.ToggleUnread(ctx, 1); return err },
	}
	for i, step := range mutate {
		require.NoError(t, step(), "step %d", i)
		it, err := db.GetItem(ctx, 1)
		require.NoError(t, err)
		if it.Starred {
			assert.False(t, it.Unread, "step %d left a starred item unread", i)
		}
	}
}
