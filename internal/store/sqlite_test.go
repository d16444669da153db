package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/chatwidget/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "widget.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedVisitor(t *testing.T, s *SQLiteStore, id string, lastSeen time.Time) {
	t.Helper()
	err := s.UpsertVisitor(context.Background(), &domain.Visitor{
		VisitorID:  id,
		Label:      "visitor-" + id,
		LastSeenAt: lastSeen,
		CreatedAt:  lastSeen,
		UpdatedAt:  lastSeen,
	})
	if err != nil {
		t.Fatalf("UpsertVisitor failed: %v", err)
	}
}

func TestGetVisitorMissing(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetVisitor(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if v != nil {
		t.Fatalf("expected nil visitor, got %+v", v)
	}
}

func TestUpsertAndGetVisitor(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().Truncate(time.Second)
	seedVisitor(t, s, "a", now)

	v, err := s.GetVisitor(context.Background(), "a")
	if err != nil {
		t.Fatalf("GetVisitor failed: %v", err)
	}
	if v == nil || v.Label != "visitor-a" || !v.LastSeenAt.Equal(now) {
		t.Fatalf("unexpected visitor %+v", v)
	}

	later := now.Add(time.Hour)
	if err := s.UpsertVisitor(context.Background(), &domain.Visitor{
		VisitorID: "a", Label: "renamed", LastSeenAt: later, CreatedAt: later, UpdatedAt: later,
	}); err != nil {
		t.Fatalf("UpsertVisitor failed: %v", err)
	}
	v, _ = s.GetVisitor(context.Background(), "a")
	if v.Label != "renamed" {
		t.Errorf("expected label update, got %q", v.Label)
	}
	if !v.CreatedAt.Equal(now) {
		t.Errorf("created_at must not change on upsert, got %v", v.CreatedAt)
	}

	n, err := s.CountVisitors(context.Background())
	if err != nil || n != 1 {
		t.Errorf("expected 1 visitor, got %d (%v)", n, err)
	}
}

func TestUpdateLastSeen(t *testing.T) {
	s := newTestStore(t)
	seedVisitor(t, s, "a", time.Now().Add(-time.Hour))

	seen := time.Now().Truncate(time.Second)
	if err := s.UpdateLastSeen(context.Background(), "a", seen); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}
	v, _ := s.GetVisitor(context.Background(), "a")
	if !v.LastSeenAt.Equal(seen) {
		t.Errorf("expected last seen %v, got %v", seen, v.LastSeenAt)
	}

	if err := s.UpdateLastSeen(context.Background(), "missing", seen); !errors.Is(err, ErrVisitorNotFound) {
		t.Errorf("expected ErrVisitorNotFound, got %v", err)
	}
}

func TestSweepStaleVisitors(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	seedVisitor(t, s, "fresh", now)
	seedVisitor(t, s, "stale-1", now.Add(-48*time.Hour))
	seedVisitor(t, s, "stale-2", now.Add(-72*time.Hour))

	var mu sync.Mutex
	var swept []string
	removed := SweepStaleVisitors(context.Background(), s, 24*time.Hour, func(id string) {
		mu.Lock()
		defer mu.Unlock()
		swept = append(swept, id)
	})

	if removed != 2 || len(swept) != 2 {
		t.Fatalf("expected 2 removed, got %d (%v)", removed, swept)
	}
	if v, _ := s.GetVisitor(context.Background(), "fresh"); v == nil {
		t.Error("fresh visitor must survive the sweep")
	}
	if v, _ := s.GetVisitor(context.Background(), "stale-1"); v != nil {
		t.Error("stale visitor must be removed")
	}
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	s := newTestStore(t)
	seedVisitor(t, s, "stale", time.Now().Add(-48*time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	swept := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunSweeper(ctx, s, 10*time.Millisecond, 24*time.Hour, func(id string) {
			select {
			case swept <- id:
			default:
			}
		})
	}()

	select {
	case id := <-swept:
		if id != "stale" {
			t.Errorf("unexpected swept id %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunSweeper returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type flakyRepo struct {
	Repository
	failures int
	calls    int
}

func (f *flakyRepo) DeleteVisitor(_ context.Context, _ string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("delete visitor: database is locked (5) (SQLITE_BUSY)")
	}
	return nil
}

func TestDeleteVisitorWithRetry(t *testing.T) {
	repo := &flakyRepo{failures: 2}
	if err := deleteVisitorWithRetry(context.Background(), repo, "a"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if repo.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", repo.calls)
	}

	repo = &flakyRepo{failures: 5}
	if err := deleteVisitorWithRetry(context.Background(), repo, "a"); err == nil {
		t.Fatal("expected failure after max retries")
	}
	if repo.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", repo.calls)
	}
}
