package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finhouse/internal/docstore"
)

func TestStoreCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, "accounts", map[string]any{"name": "Checking", "balance": 100, "tags": []string{"a"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	doc, err := s.Get(ctx, "accounts", id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Data["balance"] != int64(100) {
		t.Fatalf("balance = %#v, want int64(100)", doc.Data["balance"])
	}

	doc.Data["name"] = "mutated"
	again, _ := s.Get(ctx, "accounts", id)
	if again.Data["name"] != "Checking" {
		t.Fatalf("Get must return a copy, store saw %v", again.Data["name"])
	}

	if err := s.Update(ctx, "accounts", id, map[string]any{"name": "Main", "tags": docstore.DeleteField}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	doc, _ = s.Get(ctx, "accounts", id)
	if doc.Data["name"] != "Main" || doc.Data["balance"] != int64(100) {
		t.Fatalf("sparse update lost fields: %v", doc.Data)
	}
	if _, ok := doc.Data["tags"]; ok {
		t.Fatalf("DeleteField should remove tags: %v", doc.Data)
	}
}

func TestStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.Get(ctx, "accounts", "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Update(ctx, "accounts", "missing", map[string]any{"a": 1}); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
	if err := s.Increment(ctx, "accounts", "missing", "balance", 1); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Increment() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "accounts", "missing"); err != nil {
		t.Fatalf("Delete() of missing document should be a no-op, got %v", err)
	}
}

func TestStoreQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, user := range []string{"u1", "u1", "u2"} {
		_, err := s.Create(ctx, "transactions", map[string]any{
			"createdBy": user,
			"date":      time.Date(2025, 3, i+1, 0, 0, 0, 0, time.UTC),
			"isPaid":    i != 1,
		})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if _, err := s.Create(ctx, "transactions", map[string]any{"createdBy": "u1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		filters []docstore.Filter
		want    int
	}{
		{"no filters", nil, 4},
		{"by user", []docstore.Filter{docstore.Eq("createdBy", "u1")}, 3},
		{"date range skips missing field", []docstore.Filter{
			docstore.Gte("date", time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)),
			docstore.Lte("date", time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)),
		}, 2},
		{"bool", []docstore.Filter{docstore.Eq("isPaid", true)}, 2},
		{"type mismatch never matches", []docstore.Filter{docstore.Eq("createdBy", 1)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.Query(ctx, "transactions", tt.filters...)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(docs) != tt.want {
				t.Errorf("Query() returned %d documents, want %d", len(docs), tt.want)
			}
		})
	}

	if _, err := s.Query(ctx, "transactions", docstore.Eq("bad-field", 1)); !errors.Is(err, docstore.ErrInvalidField) {
		t.Fatalf("Query() error = %v, want ErrInvalidField", err)
	}
}

func TestStoreIncrementIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.Create(ctx, "accounts", map[string]any{"balance": 0})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(10)
			if i%2 == 0 {
				delta = -3
			}
			if err := s.Increment(ctx, "accounts", id, "balance", delta); err != nil {
				t.Errorf("Increment() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	doc, _ := s.Get(ctx, "accounts", id)
	if got := docstore.Int64(doc.Data, "balance"); got != 50*10-50*3 {
		t.Fatalf("balance = %d, want %d", got, 50*10-50*3)
	}
}

func TestStoreUniqueIndex(t *testing.T) {
	ctx := context.Background()
	s := New(WithUniqueIndex("bills", "cardId", "userId", "closingDate"))
	data := map[string]any{"cardId": "c1", "userId": "u1", "closingDate": int64(1000)}

	if _, err := s.Create(ctx, "bills", data); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := s.Create(ctx, "bills", data); !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("duplicate Create() error = %v, want ErrConflict", err)
	}
	other := map[string]any{"cardId": "c1", "userId": "u2", "closingDate": int64(1000)}
	id, err := s.Create(ctx, "bills", other)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Update(ctx, "bills", id, map[string]any{"userId": "u1"}); !errors.Is(err, docstore.ErrConflict) {
		t.Fatalf("conflicting Update() error = %v, want ErrConflict", err)
	}
	if s.Len("bills") != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len("bills"))
	}
}

func TestRunTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc, _ := s.Create(ctx, "accounts", map[string]any{"balance": 1000})
	bill, _ := s.Create(ctx, "bills", map[string]any{"paid": 0})

	boom := errors.New("boom")
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
		if err := tx.Increment(ctx, "accounts", acc, "balance", -400); err != nil {
			return err
		}
		if _, err := tx.Create(ctx, "payments", map[string]any{"bill": bill}); err != nil {
			return err
		}
		if err := tx.Delete(ctx, "bills", bill); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunTransaction() error = %v, want boom", err)
	}

	doc, _ := s.Get(ctx, "accounts", acc)
	if got := docstore.Int64(doc.Data, "balance"); got != 1000 {
		t.Fatalf("balance after rollback = %d, want 1000", got)
	}
	if _, err := s.Get(ctx, "bills", bill); err != nil {
		t.Fatalf("deleted bill should be restored: %v", err)
	}
	if s.Len("payments") != 0 {
		t.Fatalf("created payment should be rolled back")
	}
}

func TestRunTransactionPanicReleasesStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	acc, _ := s.Create(ctx, "accounts", map[string]any{"balance": 1000})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("RunTransaction() should re-panic")
			}
		}()
		_ = s.RunTransaction(ctx, func(ctx context.Context, tx docstore.ReadWriter) error {
			if err := tx.Increment(ctx, "accounts", acc, "balance", -400); err != nil {
				return err
			}
			panic("boom")
		})
	}()

	done := make(chan error, 1)
	go func() {
		done <- s.Increment(ctx, "accounts", acc, "balance", 1)
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Increment() after panic: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("store still locked after a panicking transaction")
	}

	doc, _ := s.Get(ctx, "accounts", acc)
	if got := docstore.Int64(doc.Data, "balance"); got != 1001 {
		t.Fatalf("balance = %d, want 1001", got)
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, _ = s.Create(ctx, "bills", map[string]any{"userId": "u1"})

	sub, err := s.Subscribe(ctx, "bills", docstore.Eq("userId", "u1"))
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	next := func() []docstore.Document {
		t.Helper()
		select {
		case docs := <-sub.Updates():
			return docs
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
			return nil
		}
	}

	if got := len(next()); got != 1 {
		t.Fatalf("initial snapshot has %d documents, want 1", got)
	}

	_, _ = s.Create(ctx, "bills", map[string]any{"userId": "u1"})
	deadline := time.After(2 * time.Second)
	for {
		var docs []docstore.Document
		select {
		case docs = <-sub.Updates():
		case <-deadline:
			t.Fatal("timed out waiting for updated snapshot")
		}
		if len(docs) == 2 {
			break
		}
	}

	sub.Close()
	_, _ = s.Create(ctx, "bills", map[string]any{"userId": "u1"})
	if _, ok := <-sub.Updates(); ok {
		t.Fatal("no snapshot may arrive after Close")
	}
}
