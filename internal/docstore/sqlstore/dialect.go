package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

// Dialect renders the SQL that differs between backends. Field names reaching
// a dialect have already passed docstore.ValidField.
type Dialect interface {
	Name() string
	DriverName() string
	Bind(n int) string
	// FieldExpr selects a top-level document field for comparison with v.
	FieldExpr(field string, v any) string
	Arg(v any) any
	IncrementSQL() string
	IncrementArgs(field string, delta, now int64, collection, id string) []any
	// LockSuffix is appended to reads inside a transaction.
	LockSuffix() string
	IsUniqueViolation(err error) bool
	// MaxOpenConns bounds the pool, zero meaning unlimited.
	MaxOpenConns() int
}

func DialectFor(name string) (Dialect, error) {
	switch name {
	case SQLite:
		return sqliteDialect{}, nil
	case Postgres:
		return postgresDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported dialect %q", name)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return SQLite }
func (sqliteDialect) DriverName() string { return "sqlite" }
func (sqliteDialect) Bind(int) string    { return "?" }

func (sqliteDialect) FieldExpr(field string, _ any) string {
	return "json_extract(data, '$." + field + "')"
}

// json_extract yields 1/0 for JSON booleans.
func (sqliteDialect) Arg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func (sqliteDialect) IncrementSQL() string {
	return `UPDATE documents
		SET data = json_set(data, ?, COALESCE(json_extract(data, ?), 0) + ?), updated_at = ?
		WHERE collection = ? AND id = ?`
}

func (sqliteDialect) IncrementArgs(field string, delta, now int64, collection, id string) []any {
	path := "$." + field
	return []any{path, path, delta, now, collection, id}
}

func (sqliteDialect) LockSuffix() string { return "" }

func (sqliteDialect) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// A single connection serializes writers and keeps transactions from
// failing with SQLITE_BUSY.
func (sqliteDialect) MaxOpenConns() int { return 1 }

type postgresDialect struct{}

func (postgresDialect) Name() string       { return Postgres }
func (postgresDialect) DriverName() string { return "postgres" }
func (postgresDialect) Bind(n int) string  { return fmt.Sprintf("$%d", n) }

func (postgresDialect) FieldExpr(field string, v any) string {
	base := "(data->>'" + field + "')"
	switch v.(type) {
	case int64:
		return base + "::bigint"
	case float64:
		return base + "::double precision"
	case bool:
		return base + "::boolean"
	}
	return base
}

func (postgresDialect) Arg(v any) any { return v }

func (postgresDialect) IncrementSQL() string {
	return `UPDATE documents
		SET data = jsonb_set(data, ARRAY[$1::text], to_jsonb(COALESCE((data->>$1::text)::bigint, 0) + $2::bigint)), updated_at = $3
		WHERE collection = $4 AND id = $5`
}

func (postgresDialect) IncrementArgs(field string, delta, now int64, collection, id string) []any {
	return []any{field, delta, now, collection, id}
}

func (postgresDialect) LockSuffix() string { return " FOR UPDATE" }

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (postgresDialect) MaxOpenConns() int { return 0 }
