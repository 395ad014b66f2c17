// Package sqlstore keeps docstore documents as JSON rows in SQLite or Postgres.
package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"finhouse/internal/changefeed"
	"finhouse/internal/docstore"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	feed    changefeed.Feed
	now     func() time.Time
}

type Option func(*Store)

// WithFeed publishes change signals to f instead of a private hub.
func WithFeed(f changefeed.Feed) Option {
	return func(s *Store) { s.feed = f }
}

// OpenSQLite opens (creating if needed) the database file at path and applies
// migrations.
func OpenSQLite(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return Open(SQLite, path, opts...)
}

// Open connects with the named dialect, verifies the connection and migrates.
func Open(dialectName, dsn string, opts ...Option) (*Store, error) {
	d, err := DialectFor(dialectName)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d.Name(), err)
	}
	if n := d.MaxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(db, d, opts...), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, d Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = changefeed.NewHub()
	}
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) rw(q queryer, locking bool) *conn {
	return &conn{q: q, d: s.dialect, now: s.now, locking: locking, changed: make(map[string]bool)}
}

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	return s.rw(s.db, false).Get(ctx, collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	return s.rw(s.db, false).Query(ctx, collection, filters...)
}

func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	c := s.rw(s.db, false)
	id, err := c.Create(ctx, collection, data)
	if err != nil {
		return "", err
	}
	s.publish(ctx, c.changed)
	return id, nil
}

// Update reads, merges and writes the document inside one transaction.
func (s *Store) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		return tx.Update(ctx, collection, id, patch)
	})
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	c := s.rw(s.db, false)
	if err := c.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.publish(ctx, c.changed)
	return nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	c := s.rw(s.db, false)
	if err := c.Increment(ctx, collection, id, field, delta); err != nil {
		return err
	}
	s.publish(ctx, c.changed)
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.ReadWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	c := s.rw(tx, true)
	if err := fn(ctx, c); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Failed to roll back transaction", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.publish(ctx, c.changed)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, filters ...docstore.Filter) (*docstore.Subscription, error) {
	return docstore.Watch(ctx, s, s.feed, collection, filters)
}

func (s *Store) Close() error {
	var errs []error
	if err := s.feed.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close change feed: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Store) publish(ctx context.Context, changed map[string]bool) {
	for collection := range changed {
		if err := s.feed.Publish(context.WithoutCancel(ctx), collection); err != nil {
			slog.WarnContext(ctx, "Failed to publish change", "collection", collection, "error", err)
		}
	}
}

// conn runs document operations on a pool or a transaction.
type conn struct {
	q       queryer
	d       Dialect
	now     func() time.Time
	locking bool
	changed map[string]bool
}

func (c *conn) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	query := fmt.Sprintf("SELECT data FROM documents WHERE collection = %s AND id = %s", c.d.Bind(1), c.d.Bind(2))
	if c.locking {
		query += c.d.LockSuffix()
	}
	var raw []byte
	if err := c.q.QueryRowContext(ctx, query, collection, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, docstore.ErrNotFound)
		}
		return docstore.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	data, err := decode(raw)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return docstore.Document{ID: id, Data: data}, nil
}

func (c *conn) Query(ctx context.Context, collection string, filters ...docstore.Filter) ([]docstore.Document, error) {
	if err := docstore.ValidFilters(filters); err != nil {
		return nil, err
	}
	var where strings.Builder
	where.WriteString("collection = " + c.d.Bind(1))
	args := []any{collection}
	for _, f := range filters {
		args = append(args, c.d.Arg(f.Value))
		fmt.Fprintf(&where, " AND %s %s %s", c.d.FieldExpr(f.Field, f.Value), sqlOp(f.Op), c.d.Bind(len(args)))
	}
	query := "SELECT id, data FROM documents WHERE " + where.String() + " ORDER BY id"

	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	out := []docstore.Document{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		data, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		out = append(out, docstore.Document{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return out, nil
}

func (c *conn) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	if err := docstore.ValidPatch(data); err != nil {
		return "", err
	}
	doc := make(map[string]any, len(data))
	docstore.ApplyPatch(doc, data)
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", collection, err)
	}
	id := uuid.NewString()
	now := c.now().UnixMilli()
	query := fmt.Sprintf("INSERT INTO documents (collection, id, data, created_at, updated_at) VALUES (%s, %s, %s, %s, %s)",
		c.d.Bind(1), c.d.Bind(2), c.d.Bind(3), c.d.Bind(4), c.d.Bind(5))
	if _, err := c.q.ExecContext(ctx, query, collection, id, string(raw), now, now); err != nil {
		if c.d.IsUniqueViolation(err) {
			return "", fmt.Errorf("create %s: %w", collection, docstore.ErrConflict)
		}
		return "", fmt.Errorf("create %s: %w", collection, err)
	}
	c.changed[collection] = true
	return id, nil
}

func (c *conn) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := docstore.ValidPatch(patch); err != nil {
		return err
	}
	current, err := c.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	docstore.ApplyPatch(current.Data, patch)
	raw, err := json.Marshal(current.Data)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	query := fmt.Sprintf("UPDATE documents SET data = %s, updated_at = %s WHERE collection = %s AND id = %s",
		c.d.Bind(1), c.d.Bind(2), c.d.Bind(3), c.d.Bind(4))
	if _, err := c.q.ExecContext(ctx, query, string(raw), c.now().UnixMilli(), collection, id); err != nil {
		if c.d.IsUniqueViolation(err) {
			return fmt.Errorf("update %s/%s: %w", collection, id, docstore.ErrConflict)
		}
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	c.changed[collection] = true
	return nil
}

func (c *conn) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf("DELETE FROM documents WHERE collection = %s AND id = %s", c.d.Bind(1), c.d.Bind(2))
	res, err := c.q.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.changed[collection] = true
	}
	return nil
}

func (c *conn) Increment(ctx context.Context, collection, id, field string, delta int64) error {
	if err := docstore.ValidField(field); err != nil {
		return err
	}
	res, err := c.q.ExecContext(ctx, c.d.IncrementSQL(), c.d.IncrementArgs(field, delta, c.now().UnixMilli(), collection, id)...)
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	if n == 0 {
		return fmt.Errorf("increment %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	c.changed[collection] = true
	return nil
}

func sqlOp(op docstore.Op) string {
	if op == docstore.OpEq {
		return "="
	}
	return string(op)
}

func decode(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return docstore.NormalizeMap(data), nil
}
