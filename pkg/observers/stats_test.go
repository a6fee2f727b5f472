package observers

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/harunnryd/scenecue/pkg/metrics"
)

func TestStatsObserverTallies(t *testing.T) {
	stats := NewStatsObserver()
	mem := metrics.NewMemoryObserver()
	multi := NewMultiObserver(stats, nil, mem, NewLoggerObserver(nil))

	multi.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRecommendationStore, Tags: map[string]string{"recommendation": "AUDIO_PUSH"}})
	multi.RecordEvent(metrics.MetricsEvent{Name: metrics.EventRecommendationStore, Tags: map[string]string{"recommendation": "AUDIO_PUSH"}})
	multi.RecordEvent(metrics.MetricsEvent{Name: metrics.EventClipDiscarded, Tags: map[string]string{"reason": "transcode"}})
	multi.RecordEvent(metrics.MetricsEvent{Name: metrics.EventClipDiscarded})
	multi.RecordEvent(metrics.MetricsEvent{Name: metrics.EventLabelResolved, Value: 10})
	multi.RecordEvent(metrics.MetricsEvent{Name: metrics.EventLabelResolved, Value: 30})

	snap := stats.Snapshot()
	if snap.Recommendations["AUDIO_PUSH"] != 2 {
		t.Fatalf("expected 2 AUDIO_PUSH, got %d", snap.Recommendations["AUDIO_PUSH"])
	}
	if snap.Discards["transcode"] != 1 || snap.Discards["unknown"] != 1 {
		t.Fatalf("unexpected discards %v", snap.Discards)
	}
	if snap.AvgLatencyMS[metrics.EventLabelResolved] != 20 {
		t.Fatalf("expected avg 20ms, got %v", snap.AvgLatencyMS[metrics.EventLabelResolved])
	}
	if len(mem.Events) != 6 {
		t.Fatalf("expected fan-out to every observer, got %d", len(mem.Events))
	}
}

type flushCounter struct {
	n   int
	err error
}

func (f *flushCounter) RecordEvent(metrics.MetricsEvent) {}
func (f *flushCounter) Flush() error {
	f.n++
	return f.err
}

func TestMultiObserverFlattensAndFlushes(t *testing.T) {
	a := &flushCounter{}
	b := &flushCounter{err: errors.New("disk full")}
	inner := NewMultiObserver(a, nil)
	outer := NewMultiObserver(inner, b, metrics.NewMemoryObserver())
	if len(outer.list) != 3 {
		t.Fatalf("expected flattened list of 3, got %d", len(outer.list))
	}
	if err := outer.Flush(); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected joined flush error, got %v", err)
	}
	if a.n != 1 || b.n != 1 {
		t.Fatalf("expected each flusher called once, got %d and %d", a.n, b.n)
	}
}

func TestLoggerObserverLevelsAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	obs := NewLoggerObserver(log)

	obs.RecordEvent(metrics.MetricsEvent{Name: metrics.EventClipReceived})
	if buf.Len() != 0 {
		t.Fatalf("debug events should be filtered at info, got %q", buf.String())
	}
	obs.RecordEvent(metrics.MetricsEvent{
		Name:   metrics.EventClipDiscarded,
		Tags:   map[string]string{"reason": "transcode"},
		Fields: map[string]any{"error": "GET /x?access_token=abc123 failed"},
	})
	out := buf.String()
	if !strings.Contains(out, "metric_clip_discarded") || !strings.Contains(out, "level=WARN") {
		t.Fatalf("expected warn discard record, got %q", out)
	}
	if strings.Contains(out, "abc123") {
		t.Fatalf("token leaked into log: %q", out)
	}
}
