package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string) *SQLiteEventStore {
	t.Helper()
	store, err := OpenEventStore(path)
	if err != nil {
		t.Fatalf("OpenEventStore() error = %v", err)
	}
	return store
}

func TestEventStoreSaveAndFetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store := openTestStore(t, path)
	defer store.Close()
	ctx := context.Background()

	id1, err := store.Save(ctx, 0, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	id2, err := store.Save(ctx, 1, []byte(`{"b":2}`))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id2 <= id1 {
		t.Errorf("Expected increasing ids, got %d then %d", id1, id2)
	}

	records, err := store.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 pending rows, got %d", len(records))
	}
	if records[0].ID != id1 || records[1].ID != id2 {
		t.Errorf("Expected sequence order %d,%d, got %d,%d", id1, id2, records[0].ID, records[1].ID)
	}
	if records[0].Type != 0 || records[1].Type != 1 {
		t.Errorf("Expected types 0,1, got %d,%d", records[0].Type, records[1].Type)
	}
	if string(records[0].Body) != `{"a":1}` {
		t.Errorf("Expected body round-trip, got %s", records[0].Body)
	}
	for _, r := range records {
		if r.Status != EventStatusFlushing {
			t.Errorf("Expected fetched row %d marked flushing, got %d", r.ID, r.Status)
		}
	}

	// Fetched rows are no longer pending.
	again, err := store.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected no pending rows after fetch, got %d", len(again))
	}
}

func TestEventStoreFetchLimit(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "events.db"))
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.Save(ctx, 0, []byte(`{}`)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	records, err := store.FetchPending(ctx, 3)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(records) != 3 {
		t.Errorf("Expected limit of 3 rows, got %d", len(records))
	}
}

func TestEventStoreLifecycle(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "events.db"))
	defer store.Close()
	ctx := context.Background()

	id, err := store.Save(ctx, 0, []byte(`{}`))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := store.MarkFlushing(ctx, []int64{id}); err != nil {
		t.Fatalf("MarkFlushing() error = %v", err)
	}
	records, err := store.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected flushing row excluded from pending fetch, got %d", len(records))
	}

	if err := store.RevertToPending(ctx, []int64{id}); err != nil {
		t.Fatalf("RevertToPending() error = %v", err)
	}
	records, err = store.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected reverted row pending again, got %d rows", len(records))
	}

	if err := store.Delete(ctx, []int64{id}); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty store after delete, got %d rows", count)
	}
}

func TestEventStoreTrimTo(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "events.db"))
	defer store.Close()
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 10; i++ {
		id, err := store.Save(ctx, 0, []byte(`{}`))
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		lastID = id
	}

	if err := store.TrimTo(ctx, 4); err != nil {
		t.Fatalf("TrimTo() error = %v", err)
	}
	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 4 {
		t.Fatalf("Expected 4 rows after trim, got %d", count)
	}

	// The newest rows survive.
	records, err := store.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if records[len(records)-1].ID != lastID {
		t.Errorf("Expected newest row %d retained, got %d", lastID, records[len(records)-1].ID)
	}
}

func TestEventStoreRecoversFlushingOnOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	first := openTestStore(t, path)
	id, err := first.Save(ctx, 0, []byte(`{}`))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := first.MarkFlushing(ctx, []int64{id}); err != nil {
		t.Fatalf("MarkFlushing() error = %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := openTestStore(t, path)
	defer reopened.Close()
	records, err := reopened.FetchPending(ctx, 10)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(records) != 1 || records[0].ID != id {
		t.Errorf("Expected flushing row recovered to pending on open, got %d rows", len(records))
	}
}

func TestOpenEventStoreEmptyPath(t *testing.T) {
	if _, err := OpenEventStore("  "); err == nil {
		t.Error("Expected error for blank path")
	}
}
