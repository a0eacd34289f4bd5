package db

import (
	"context"
	"strconv"
	"strings"
)

// postgresDialect rewrites '?' to positional '$N' placeholders and retrieves
// insert ids through a RETURNING clause.
type postgresDialect struct{}

func (postgresDialect) rewrite(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (d postgresDialect) insertID(ctx context.Context, r runner, query, idColumn string, args ...any) (int64, error) {
	q := d.rewrite(query + " RETURNING " + idColumn)
	var id int64
	if err := r.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// sqliteDialect keeps '?' placeholders as-is and reads the insert id from the
// driver's last-insert-rowid.
type sqliteDialect struct{}

func (sqliteDialect) rewrite(query string) string { return query }

func (d sqliteDialect) insertID(ctx context.Context, r runner, query, _ string, args ...any) (int64, error) {
	res, err := r.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
