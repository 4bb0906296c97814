package database

import (
	"context"
	"fmt"
)

// Optional columns this server adds to newsboat's rss_item table.
// is_clickbait is a tri-state classification (NULL until classified) and
// rebait_title holds a rewritten title; neither is written by this server
// yet, but both are queried, so they must exist.
var optionalColumns = []struct {
	name string
	typ  string
}{
	{"is_clickbait", "INTEGER"},
	{"rebait_title", "TEXT"},
}

// migrate adds the optional columns if they are missing. Additive only;
// existing newsboat columns and data are never touched. Safe to run on
// every startup.
func (db *DB) migrate(ctx context.Context) error {
	existing, err := db.columnNames(ctx, "rss_item")
	if err != nil {
		return err
	}
	for _, col := range optionalColumns {
		if existing[col.name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE rss_item ADD COLUMN %s %s", col.name, col.typ)
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s: %w", col.name, err)
		}
		db.log.Info("added column to rss_item", "column", col.name)
	}
	return nil
}

func (db *DB) columnNames(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		names[name] = true
	}
	return names, rows.Err()
}
