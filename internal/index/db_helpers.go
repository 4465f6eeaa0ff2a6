package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var libraryTables = []string{"records", "named_sets", "named_set_members", "vocabulary"}

func clearLibrary(ctx context.Context, e execer) error {
	for _, table := range libraryTables {
		if _, err := e.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	return nil
}

// placeholders returns "?, ?, ..." for keys and the matching args. An empty
// key list yields "NULL" so that IN (NULL) matches nothing.
func placeholders(keys []string) (string, []any) {
	if len(keys) == 0 {
		return "NULL", nil
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(keys)), ", "), args
}

// collect drains rows through scan and closes them.
func collect[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
