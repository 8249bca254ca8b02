package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://"+s.Addr(), time.Hour)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestGetMissingWindow(t *testing.T) {
	store, s := setupTestStore(t)
	defer store.Close()
	defer s.Close()

	window, err := store.Get(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if window.LastPubIDSeen != 0 || window.FirstPubIDDelivered != 0 || len(window.Delivered) != 0 {
		t.Errorf("expected zero window for unknown session, got %+v", window)
	}
}

func TestPutAndGetWindow(t *testing.T) {
	store, s := setupTestStore(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	in := Window{LastPubIDSeen: 42, FirstPubIDDelivered: 7, Delivered: []int64{3, 9, 12}}
	if err := store.Put(ctx, "sess-1", in); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	out, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if out.LastPubIDSeen != 42 || out.FirstPubIDDelivered != 7 {
		t.Errorf("bounds lost on round trip: %+v", out)
	}
	if len(out.Delivered) != 3 || !out.HasDelivered(9) {
		t.Errorf("delivered set lost on round trip: %+v", out.Delivered)
	}
}

func TestWindowExpires(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "sess-1", Window{LastPubIDSeen: 5}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	s.FastForward(2 * time.Minute)

	window, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get after expiry failed: %v", err)
	}
	if window.LastPubIDSeen != 0 {
		t.Errorf("expected expired window to read as zero, got %+v", window)
	}
}

func TestPutRefreshesTTL(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()
	store, err := NewRedisStore("redis://"+s.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "sess-1", Window{LastPubIDSeen: 1}); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	s.FastForward(45 * time.Second)
	if err := store.Put(ctx, "sess-1", Window{LastPubIDSeen: 2}); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	s.FastForward(45 * time.Second)

	window, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if window.LastPubIDSeen != 2 {
		t.Errorf("expected refreshed window to survive, got %+v", window)
	}
}

func TestDeleteWindow(t *testing.T) {
	store, s := setupTestStore(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.Put(ctx, "sess-1", Window{LastPubIDSeen: 10}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete(ctx, "sess-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	window, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get after delete failed: %v", err)
	}
	if window.LastPubIDSeen != 0 {
		t.Errorf("expected deleted window to read as zero, got %+v", window)
	}
}

func TestWindowTransitions(t *testing.T) {
	var w Window

	w.AdvanceNew(10, []int64{1, 2})
	if w.LastPubIDSeen != 10 {
		t.Errorf("AdvanceNew: expected last seen 10, got %d", w.LastPubIDSeen)
	}
	if !w.HasDelivered(1) || !w.HasDelivered(2) {
		t.Error("AdvanceNew did not record delivered notes")
	}

	// A lower max must never regress the bound.
	w.AdvanceNew(8, nil)
	if w.LastPubIDSeen != 10 {
		t.Errorf("AdvanceNew regressed bound to %d", w.LastPubIDSeen)
	}

	w.SeedFirst(6)
	w.AdvanceOld(4, []int64{3})
	if w.FirstPubIDDelivered != 4 {
		t.Errorf("AdvanceOld: expected first delivered 4, got %d", w.FirstPubIDDelivered)
	}

	// A higher lowest pub must never raise the bound back up.
	w.AdvanceOld(9, nil)
	if w.FirstPubIDDelivered != 4 {
		t.Errorf("AdvanceOld raised bound to %d", w.FirstPubIDDelivered)
	}

	// Marking the same note twice keeps the set a set.
	w.AdvanceNew(11, []int64{1})
	count := 0
	for _, id := range w.Delivered {
		if id == 1 {
			count++
		}
	}
	if count != 1 {
		t.Errorf("note 1 recorded %d times in delivered set", count)
	}

	w.Reset()
	if w.LastPubIDSeen != 0 || w.FirstPubIDDelivered != 0 || len(w.Delivered) != 0 {
		t.Errorf("Reset left state behind: %+v", w)
	}
}
