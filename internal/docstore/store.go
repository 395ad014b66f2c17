// Package docstore defines the document store the finance engine persists to.
//
// Documents are schemaless maps keyed by collection and id. Values are
// normalized to nil, bool, string, int64, float64, []any and map[string]any;
// timestamps are stored as Unix milliseconds. Backends live in the memory and
// sqlstore subpackages.
package docstore

import (
	"context"
	"errors"
	"regexp"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrConflict     = errors.New("document conflicts with a unique index")
	ErrInvalidField = errors.New("invalid field name")
	ErrClosed       = errors.New("store closed")
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

// Filter matches documents whose top-level Field compares to Value.
// Documents missing the field never match.
type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter  { return Filter{Field: field, Op: OpEq, Value: Normalize(v)} }
func Gte(field string, v any) Filter { return Filter{Field: field, Op: OpGte, Value: Normalize(v)} }
func Lte(field string, v any) Filter { return Filter{Field: field, Op: OpLte, Value: Normalize(v)} }
func Gt(field string, v any) Filter  { return Filter{Field: field, Op: OpGt, Value: Normalize(v)} }
func Lt(field string, v any) Filter  { return Filter{Field: field, Op: OpLt, Value: Normalize(v)} }

type Document struct {
	ID   string
	Data map[string]any
}

type deleteField struct{}

// DeleteField removes a field when used as a value in an Update patch.
var DeleteField any = deleteField{}

// IsDeleteField reports whether v is the DeleteField sentinel.
func IsDeleteField(v any) bool {
	_, ok := v.(deleteField)
	return ok
}

type (
	Reader interface {
		Get(ctx context.Context, collection, id string) (Document, error)
		Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	}

	Writer interface {
		// Create stores data under a generated id and returns it.
		Create(ctx context.Context, collection string, data map[string]any) (string, error)
		// Update merges patch into the document. Fields absent from patch are
		// left untouched.
		Update(ctx context.Context, collection, id string, patch map[string]any) error
		// Delete removes the document. Deleting a missing document is a no-op.
		Delete(ctx context.Context, collection, id string) error
		// Increment atomically adds delta to a numeric field, treating a missing
		// field as zero.
		Increment(ctx context.Context, collection, id, field string, delta int64) error
	}

	ReadWriter interface {
		Reader
		Writer
	}

	Store interface {
		ReadWriter
		// RunTransaction applies every write fn makes through tx atomically.
		// fn must use tx, not the store, for all its reads and writes.
		RunTransaction(ctx context.Context, fn func(ctx context.Context, tx ReadWriter) error) error
		// Subscribe streams the matching documents whenever the collection changes.
		Subscribe(ctx context.Context, collection string, filters ...Filter) (*Subscription, error)
		Close() error
	}
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidField reports whether name can be used as a document field in filters,
// patches and increments.
func ValidField(name string) error {
	if !fieldPattern.MatchString(name) {
		return fmtField(name)
	}
	return nil
}

func ValidFilters(filters []Filter) error {
	for _, f := range filters {
		if err := ValidField(f.Field); err != nil {
			return err
		}
		switch f.Op {
		case OpEq, OpGt, OpGte, OpLt, OpLte:
		default:
			return errors.New("unsupported filter operator " + string(f.Op))
		}
	}
	return nil
}
