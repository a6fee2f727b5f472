package observers

import (
	"sync"

	"github.com/harunnryd/scenecue/pkg/metrics"
)

// Snapshot is a point-in-time copy of StatsObserver counters.
type Snapshot struct {
	Events          map[string]int64   `json:"events"`
	Recommendations map[string]int64   `json:"recommendations"`
	Discards        map[string]int64   `json:"discards"`
	AvgLatencyMS    map[string]float64 `json:"avg_latency_ms"`
}

// StatsObserver tallies pipeline events for the /stats endpoint.
type StatsObserver struct {
	mu       sync.Mutex
	events   map[string]int64
	recs     map[string]int64
	discards map[string]int64
	latSum   map[string]float64
	latN     map[string]int64
}

func NewStatsObserver() *StatsObserver {
	return &StatsObserver{
		events:   make(map[string]int64),
		recs:     make(map[string]int64),
		discards: make(map[string]int64),
		latSum:   make(map[string]float64),
		latN:     make(map[string]int64),
	}
}

func (o *StatsObserver) RecordEvent(ev metrics.MetricsEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[ev.Name]++
	switch ev.Name {
	case metrics.EventRecommendationStore:
		if rec := ev.Tags["recommendation"]; rec != "" {
			o.recs[rec]++
		}
	case metrics.EventClipDiscarded:
		reason := ev.Tags["reason"]
		if reason == "" {
			reason = "unknown"
		}
		o.discards[reason]++
	case metrics.EventLabelResolved, metrics.EventVisionCall:
		if ev.Value > 0 {
			o.latSum[ev.Name] += ev.Value
			o.latN[ev.Name]++
		}
	}
}

func (o *StatsObserver) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		Events:          make(map[string]int64, len(o.events)),
		Recommendations: make(map[string]int64, len(o.recs)),
		Discards:        make(map[string]int64, len(o.discards)),
		AvgLatencyMS:    make(map[string]float64, len(o.latN)),
	}
	for k, v := range o.events {
		s.Events[k] = v
	}
	for k, v := range o.recs {
		s.Recommendations[k] = v
	}
	for k, v := range o.discards {
		s.Discards[k] = v
	}
	for k, n := range o.latN {
		s.AvgLatencyMS[k] = o.latSum[k] / float64(n)
	}
	return s
}
