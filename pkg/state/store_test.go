package state

import (
	"fmt"
	"sync"
	"testing"

	"github.com/harunnryd/scenecue/pkg/recommend"
)

func TestStoreIsolation(t *testing.T) {
	s := NewStore()
	s.Set("A", recommend.OutlineOnly, "audio", "Subway, metro, underground")
	if _, ok := s.Get("B"); ok {
		t.Fatalf("expected B to be unseen")
	}
	s.Set("B", recommend.AudioPush, "image", "")
	a, _ := s.Get("A")
	b, _ := s.Get("B")
	if a.Recommendation != recommend.OutlineOnly {
		t.Fatalf("A overwritten by B: %s", a.Recommendation)
	}
	if b.Recommendation != recommend.AudioPush {
		t.Fatalf("unexpected B: %s", b.Recommendation)
	}
	if _, ok := s.Get(GlobalSlot); ok {
		t.Fatalf("global slot must stay empty")
	}
}

func TestStoreLastWriterWins(t *testing.T) {
	s := NewStore()
	s.Set("u", recommend.OutlineOnly, "audio", "Train")
	s.Set("u", recommend.FullDetail, "audio", "Typing")
	e, ok := s.Get("u")
	if !ok || e.Recommendation != recommend.FullDetail || e.Label != "Typing" {
		t.Fatalf("expected latest entry, got %+v", e)
	}
	if s.Len() != 1 {
		t.Fatalf("expected one entry per user, got %d", s.Len())
	}
}

func TestStoreConcurrentWriters(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i%4)
			for j := 0; j < 100; j++ {
				s.Set(id, recommend.AudioPush, "audio", "Speech")
				_, _ = s.Get(id)
			}
		}(i)
	}
	wg.Wait()
	if s.Len() != 4 {
		t.Fatalf("expected 4 users, got %d", s.Len())
	}
}
