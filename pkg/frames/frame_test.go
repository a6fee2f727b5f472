package frames

import (
	"testing"
	"time"
)

func TestMetaIsCopied(t *testing.T) {
	f := NewAudioFrame("u1", 1, []byte{1, 2}, map[string]string{MetaSource: SourceStream})
	m := f.Meta()
	m[MetaUserID] = "other"
	if f.UserID() != "u1" {
		t.Fatalf("meta mutation leaked into frame")
	}
	if f.Meta()[MetaSource] != SourceStream {
		t.Fatalf("expected source meta")
	}
}

func TestGlobalUserIDIsKept(t *testing.T) {
	f := NewPCMFrame("", 1, make([]float32, 16000), 16000, nil)
	if _, ok := f.Meta()[MetaUserID]; !ok {
		t.Fatalf("expected user id key even for the global slot")
	}
	if f.Duration() != time.Second {
		t.Fatalf("expected 1s, got %v", f.Duration())
	}
}

func TestPTSGenMonotonic(t *testing.T) {
	g := NewPTSGen()
	prev := g.Next("u")
	for i := 0; i < 100; i++ {
		next := g.Next("u")
		if next <= prev {
			t.Fatalf("pts went backwards: %d <= %d", next, prev)
		}
		prev = next
	}
}
