package metrics

import "time"

// Event names emitted by the classification pipeline.
const (
	EventClipReceived        = "clip_received"
	EventClipDiscarded       = "clip_discarded"
	EventLabelResolved       = "label_resolved"
	EventRecommendationStore = "recommendation_stored"
	EventVisionCall          = "vision_call"
	EventPollCycle           = "poll_cycle"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Emit records a timestamped event on obs; a nil observer is ignored.
func Emit(obs Observer, name string, value float64, tags map[string]string, fields map[string]any) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Value:  value,
		Tags:   tags,
		Fields: fields,
	})
}

// Since is a latency value in milliseconds.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
