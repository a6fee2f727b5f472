package observers

import (
	"context"
	"errors"
	"log/slog"

	"github.com/harunnryd/scenecue/pkg/metrics"
	"github.com/harunnryd/scenecue/pkg/redact"
)

// LoggerObserver writes each event as one log record named after the
// event. Discards log at warn so they show at the default level.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	level := slog.LevelDebug
	if ev.Name == metrics.EventClipDiscarded {
		level = slog.LevelWarn
	}
	if !o.log.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]slog.Attr, 0, 2+len(ev.Tags)+len(ev.Fields))
	attrs = append(attrs, slog.Time("at", ev.Time), slog.Float64("value", ev.Value))
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, redact.Text(v)))
	}
	for k, v := range ev.Fields {
		if s, ok := v.(string); ok {
			v = redact.Text(s)
		}
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(context.Background(), level, "metric_"+ev.Name, attrs...)
}

// MultiObserver fans one event out to every member in order. Nested
// MultiObservers are flattened and nil members dropped.
type MultiObserver struct {
	list []metrics.Observer
}

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	m := &MultiObserver{}
	for _, obs := range list {
		switch o := obs.(type) {
		case nil:
		case *MultiObserver:
			m.list = append(m.list, o.list...)
		default:
			m.list = append(m.list, o)
		}
	}
	return m
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range m.list {
		obs.RecordEvent(ev)
	}
}

// Flush flushes every member that supports it and joins the errors.
func (m *MultiObserver) Flush() error {
	var errs error
	for _, obs := range m.list {
		if f, ok := obs.(metrics.Flusher); ok {
			errs = errors.Join(errs, f.Flush())
		}
	}
	return errs
}
