package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// Replace describes a replace-on-conflict bulk write. The load is
// idempotent: rows sharing a key with an existing row overwrite it.
type Replace struct {
	Schema  string
	Table   string
	Columns []string // every column being written, key columns included
	Keys    []string // columns forming the unique constraint
}

// BulkReplace writes rows through a temp table: COPY into the temp
// table, then a single INSERT ... ON CONFLICT (keys) DO UPDATE into the
// target. One transaction; either every row lands or none do.
func BulkReplace(ctx context.Context, pool Pool, cfg Replace, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.Errorf("db: replace into %s.%s: no columns", cfg.Schema, cfg.Table)
	}
	if len(cfg.Keys) == 0 {
		return 0, eris.Errorf("db: replace into %s.%s: no key columns", cfg.Schema, cfg.Table)
	}

	target := pgx.Identifier{cfg.Schema, cfg.Table}.Sanitize()
	temp := pgx.Identifier{fmt.Sprintf("_load_%s", cfg.Table)}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace into %s.%s: begin", cfg.Schema, cfg.Table)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		temp.Sanitize(), target,
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: replace into %s.%s: temp table", cfg.Schema, cfg.Table)
	}

	if _, err := CopyBatched(ctx, tx, temp, cfg.Columns, rows, 0); err != nil {
		return 0, eris.Wrapf(err, "db: replace into %s.%s: COPY", cfg.Schema, cfg.Table)
	}

	keySet := make(map[string]bool, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keySet[k] = true
	}
	var sets []string
	for _, c := range cfg.Columns {
		if keySet[c] {
			continue
		}
		q := pgx.Identifier{c}.Sanitize()
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", q, q))
	}

	cols := quoteAndJoin(cfg.Columns)
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s",
		target, cols, cols, temp.Sanitize(), quoteAndJoin(cfg.Keys), strings.Join(sets, ", "),
	)
	tag, err := tx.Exec(ctx, insertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: replace into %s.%s: insert", cfg.Schema, cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "db: replace into %s.%s: commit", cfg.Schema, cfg.Table)
	}
	return tag.RowsAffected(), nil
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
