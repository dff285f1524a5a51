package apisession

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type testState struct {
	ID      string
	Counter int
}

func newState(id string) *testState { return &testState{ID: id} }

func TestAddAndGet(t *testing.T) {
	s := New[*testState](time.Minute, 0, nil)

	id, a, err := s.Add(newState)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("id %q is not a uuid: %v", id, err)
	}
	if a.ID != id {
		t.Errorf("value built with id %q, want %q", a.ID, id)
	}
	a.Counter = 42

	got, ok := s.Get(id)
	if !ok || got != a || got.Counter != 42 {
		t.Errorf("Get returned %+v, %v", got, ok)
	}

	if _, ok := s.Get("missing"); ok {
		t.Error("Get should not create entries")
	}
}

func TestMaxEntries(t *testing.T) {
	s := New[*testState](0, 2, nil)
	for i := 0; i < 2; i++ {
		if _, _, err := s.Add(newState); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}
	if _, _, err := s.Add(newState); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	var evicted []string
	s := New[*testState](time.Minute, 0, func(id string, v *testState) { evicted = append(evicted, id) })

	clock := time.Now()
	s.now = func() time.Time { return clock }

	stale, _, _ := s.Add(newState)
	keep, _, _ := s.Add(newState)

	clock = clock.Add(45 * time.Second)
	s.Get(keep)
	clock = clock.Add(30 * time.Second)

	if n := s.Cleanup(); n != 1 {
		t.Errorf("Cleanup evicted %d, want 1", n)
	}
	if len(evicted) != 1 || evicted[0] != stale {
		t.Errorf("evicted = %v, want [%s]", evicted, stale)
	}
	if _, ok := s.Get(keep); !ok {
		t.Error("recently used entry was evicted")
	}
}

func TestTouchKeepsEntryAlive(t *testing.T) {
	s := New[*testState](time.Minute, 0, nil)
	clock := time.Now()
	s.now = func() time.Time { return clock }

	id, _, _ := s.Add(newState)
	for i := 0; i < 3; i++ {
		clock = clock.Add(45 * time.Second)
		if !s.Touch(id) {
			t.Fatal("Touch reported a live entry as missing")
		}
		if n := s.Cleanup(); n != 0 {
			t.Fatalf("Cleanup evicted %d touched entries", n)
		}
	}

	clock = clock.Add(2 * time.Minute)
	if n := s.Cleanup(); n != 1 {
		t.Errorf("Cleanup evicted %d, want 1", n)
	}
	if s.Touch(id) {
		t.Error("Touch on an evicted entry should report false")
	}
}

func TestRemoveAndDrain(t *testing.T) {
	called := false
	s := New[*testState](time.Minute, 0, func(string, *testState) { called = true })

	a, _, _ := s.Add(newState)
	s.Add(newState)

	if _, ok := s.Remove(a); !ok {
		t.Error("Remove should find the entry")
	}
	if _, ok := s.Remove(a); ok {
		t.Error("second Remove should miss")
	}
	if got := len(s.Drain()); got != 1 {
		t.Errorf("Drain returned %d, want 1", got)
	}
	if s.Len() != 0 {
		t.Errorf("Len = %d after Drain", s.Len())
	}
	if called {
		t.Error("Remove and Drain must not call the eviction callback")
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New[*testState](time.Minute, 0, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _, _ := s.Add(newState)
			s.Get(id)
			s.Cleanup()
		}()
	}
	wg.Wait()
	if s.Len() != 50 {
		t.Errorf("Len = %d, want 50", s.Len())
	}
}
