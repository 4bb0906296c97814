// Package database provides SQLite access to the newsboat cache.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"nbserver/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the connection pool to the newsboat cache database.
// database/sql hands each statement its own pooled connection, so handlers
// share one DB value without coordinating access themselves.
type DB struct {
	conn *sql.DB
	log  *slog.Logger
}

// Ensure DB implements Store.
var _ Store = (*DB)(nil)

// New opens the newsboat cache at the given path. The database is owned by
// newsboat; it must already exist, and the schema is only ever extended with
// nullable columns, never created or rewritten.
func New(path string, log *slog.Logger) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cache database %s: %w", path, err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Newsboat may hold the write lock while refreshing feeds.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	db := &DB{conn: conn, log: log}
	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

const listColumns = `
	rss_item.id,
	rss_feed.title AS channel_name,
	rss_feed.url AS channel_url,
	rss_item.title,
	rss_item.url,
	rss_item.deleted,
	rss_item.unread,
	rss_item.pubDate,
	rss_item.content,
	rss_item.author,
	rss_item.feedurl,
	rss_item.flags`

// ListItems returns non-deleted items joined with their parent feed,
// ordered case-insensitively by feed title ascending.
func (db *DB) ListItems(ctx context.Context, filter ListFilter) ([]model.Item, error) {
	query := "SELECT " + listColumns + `
		FROM rss_item
		INNER JOIN rss_feed ON rss_item.feedurl = rss_feed.rssurl
		WHERE rss_item.deleted = 0`
	if filter == FilterUnqualified {
		query += " AND rss_item.is_clickbait IS NULL"
	}
	query += " ORDER BY UPPER(channel_name) ASC"

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		var pubDate int64
		var flags sql.NullString
		if err := rows.Scan(&it.ID, &it.ChannelName, &it.ChannelURL, &it.Title, &it.URL,
			&it.Deleted, &it.Unread, &pubDate, &it.Content, &it.Author, &it.FeedURL, &flags); err != nil {
			return nil, err
		}
		it.PubDate = model.FormatPubDate(pubDate)
		it.Flags = model.NormalizeFlags(flags.String)
		it.Starred = model.HasFlag(it.Flags, model.StarFlag)
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetItem returns a single non-deleted item, or ErrNotFound.
func (db *DB) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, author, title, url, deleted, unread, pubDate, content, feedurl, flags
		FROM rss_item
		WHERE id = ? AND deleted = 0`, id)

	var it model.Item
	var pubDate int64
	var flags sql.NullString
	err := row.Scan(&it.ID, &it.Author, &it.Title, &it.URL, &it.Deleted, &it.Unread,
		&pubDate, &it.Content, &it.FeedURL, &flags)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.PubDate = model.FormatPubDate(pubDate)
	it.Flags = model.NormalizeFlags(flags.String)
	it.Starred = model.HasFlag(it.Flags, model.StarFlag)
	return &it, nil
}

// MarkDeleted soft-deletes an item. A second call on an already-deleted
// row reports ErrNotFound since no live row was changed.
func (db *DB) MarkDeleted(ctx context.Context, id int64) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE rss_item SET deleted = 1 WHERE id = ? AND deleted = 0", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDeletedBatch soft-deletes a set of items in one statement.
// Succeeds if at least one row changed.
func (db *DB) MarkDeletedBatch(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return ErrNotFound
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := db.conn.ExecContext(ctx,
		"UPDATE rss_item SET deleted = 1 WHERE deleted = 0 AND id IN ("+placeholders+")", args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFlags returns the item's flags normalized, empty string when unset.
func (db *DB) GetFlags(ctx context.Context, id int64) (string, error) {
	var flags sql.NullString
	err := db.conn.QueryRowContext(ctx,
		"SELECT flags FROM rss_item WHERE id = ? AND deleted = 0", id).Scan(&flags)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return model.NormalizeFlags(flags.String), nil
}

// SetFlags writes a normalized flags string to a non-deleted item.
// An empty string is stored as NULL, matching how newsboat leaves
// unflagged rows.
func (db *DB) SetFlags(ctx context.Context, id int64, flags string) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE rss_item SET flags = ? WHERE id = ? AND deleted = 0",
		flagsValue(model.NormalizeFlags(flags)), id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleUnread flips the unread bit inside one transaction. Transitioning
// to unread also removes the star, so a reader never observes a row that
// is both starred and unread.
func (db *DB) ToggleUnread(ctx context.Context, id int64) (*model.FlagState, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE rss_item
		SET unread = CASE unread WHEN 0 THEN 1 ELSE 0 END
		WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrNotFound
	}

	var unread bool
	var flags sql.NullString
	if err := tx.QueryRowContext(ctx,
		"SELECT unread, flags FROM rss_item WHERE id = ?", id).Scan(&unread, &flags); err != nil {
		return nil, err
	}

	normalized := model.NormalizeFlags(flags.String)
	if unread && model.HasFlag(normalized, model.StarFlag) {
		normalized = model.RemoveFlag(normalized, model.StarFlag)
		if _, err := tx.ExecContext(ctx,
			"UPDATE rss_item SET flags = ? WHERE id = ?", flagsValue(normalized), id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.FlagState{
		Unread:  unread,
		Flags:   normalized,
		Starred: model.HasFlag(normalized, model.StarFlag),
	}, nil
}

// SetStarred adds or removes the star inside one transaction. Starring
// forces unread=0; unstarring leaves unread alone so the read state of a
// kept item survives un-keeping it.
func (db *DB) SetStarred(ctx context.Context, id int64, starred bool) (*model.FlagState, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var unread bool
	var flags sql.NullString
	err = tx.QueryRowContext(ctx,
		"SELECT unread, flags FROM rss_item WHERE id = ? AND deleted = 0", id).Scan(&unread, &flags)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var normalized string
	if starred {
		normalized = model.AddFlag(flags.String, model.StarFlag)
		unread = false
		_, err = tx.ExecContext(ctx,
			"UPDATE rss_item SET flags = ?, unread = 0 WHERE id = ? AND deleted = 0",
			flagsValue(normalized), id)
	} else {
		normalized = model.RemoveFlag(flags.String, model.StarFlag)
		_, err = tx.ExecContext(ctx,
			"UPDATE rss_item SET flags = ? WHERE id = ? AND deleted = 0",
			flagsValue(normalized), id)
	}
	if err != nil {
		return nil, fmt.Errorf("write flags: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &model.FlagState{
		Unread:  unread,
		Flags:   normalized,
		Starred: model.HasFlag(normalized, model.StarFlag),
	}, nil
}

// flagsValue maps the canonical empty flags string to NULL for storage.
func flagsValue(flags string) any {
	if flags == "" {
		return nil
	}
	return flags
}
