package core

import (
	"context"
	"database/sql"
	"strings"
)

type (
	DBExecutor interface {
		Exec(query string, args ...interface{}) (sql.Result, error)
		ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
		Query(query string, args ...interface{}) (*sql.Rows, error)
		QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
		QueryRow(query string, args ...interface{}) *sql.Row
		QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	}

	// Transactor runs fn inside a single database transaction.
	// The executor handed to fn must be passed on to every repository call that belongs to the transaction.
	// The transaction is rolled back when fn returns an error.
	Transactor interface {
		InTx(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering reads a comma separated list of fields, each optionally prefixed with "-" for descending order.
// e.g: "-version,created_at"
func ParseOrdering(raw string) []DBOrdering {
	var ordering []DBOrdering
	for _, field := range strings.Split(raw, ",") {
		field = CleanString(field)
		descending := strings.HasPrefix(field, "-")
		field = strings.TrimPrefix(field, "-")
		if field == "" {
			continue
		}
		ordering = append(ordering, DBOrdering{Field: field, Ascending: !descending})
	}
	return ordering
}

// FilterOrdering keeps the orderings on `fields` only, since they end up in raw SQL.
// `fallback` is used when nothing is left.
func FilterOrdering(ordering []DBOrdering, fields []string, fallback DBOrdering) []DBOrdering {
	allowed := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, fld := range fields {
			if ord.Field == fld {
				allowed = append(allowed, ord)
				break
			}
		}
	}
	if len(allowed) == 0 {
		allowed = append(allowed, fallback)
	}
	return allowed
}
