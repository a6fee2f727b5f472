package metrics

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAsyncObserverDrainsOnClose(t *testing.T) {
	mem := NewMemoryObserver()
	async := NewAsyncObserver(mem, 64)
	for i := 0; i < 10; i++ {
		Emit(async, EventClipReceived, float64(i), map[string]string{"user_id": "u1"}, nil)
	}
	async.Close()
	if got := len(mem.Named(EventClipReceived)); got+int(async.Dropped()) != 10 {
		t.Fatalf("expected 10 events delivered or dropped, got %d delivered, %d dropped", got, async.Dropped())
	}
	Emit(async, EventClipReceived, 1, nil, nil)
}

func TestEmitNilObserver(t *testing.T) {
	Emit(nil, EventPollCycle, 1, nil, nil)
}

func TestJSONLObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := NewJSONLObserver(&buf)
	obs.RecordEvent(MetricsEvent{Name: EventLabelResolved, Tags: map[string]string{"label": "Speech"}})
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if line["name"] != EventLabelResolved || line["label"] != "Speech" {
		t.Fatalf("unexpected line %v", line)
	}
}

func TestOpenJSONLFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")
	obs, err := OpenJSONLFile(dir, "events.jsonl")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	obs.RecordEvent(MetricsEvent{Name: EventVisionCall})
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	f, err := os.Open(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()
	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
	}
	if lines != 1 {
		t.Fatalf("expected one line, got %d", lines)
	}
}
