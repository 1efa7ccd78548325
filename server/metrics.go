package server

import (
	"github.com/etnz/valuation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus metrics of an editing session.
type Metrics struct {
	reg    prometheus.Registerer
	events *prometheus.CounterVec
	past   prometheus.Gauge
	future prometheus.Gauge
	auto   prometheus.Gauge
}

// NewMetrics registers the session metrics in reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vme_editor_events_total",
			Help: "Number of editor events, by kind",
		}, []string{"kind"}),
		past: f.NewGauge(prometheus.GaugeOpts{
			Name: "vme_history_undo_depth",
			Help: "Number of snapshots that can be undone",
		}),
		future: f.NewGauge(prometheus.GaugeOpts{
			Name: "vme_history_redo_depth",
			Help: "Number of snapshots that can be redone",
		}),
		auto: f.NewGauge(prometheus.GaugeOpts{
			Name: "vme_linked_fields",
			Help: "Number of fields following a source",
		}),
	}
}

// Observe updates m on every event of e until cancel is called. The requests
// in flight on each of feeds are reported when scraped.
func (m *Metrics) Observe(e *valuation.Editor, feeds ...valuation.SourceID) (cancel func()) {
	var pending []prometheus.Collector
	for _, feed := range feeds {
		pending = append(pending, promauto.With(m.reg).NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "vme_refresh_pending",
			Help:        "Number of refresh requests in flight, by feed",
			ConstLabels: prometheus.Labels{"feed": string(feed)},
		}, func() float64 { return float64(e.Pending(feed)) }))
	}
	m.update(e)
	stop := e.Subscribe(func(ev valuation.Event) {
		m.events.WithLabelValues(ev.Kind.String()).Inc()
		m.update(e)
	})
	return func() {
		stop()
		for _, c := range pending {
			if m.reg != nil {
				m.reg.Unregister(c)
			}
		}
	}
}

func (m *Metrics) update(e *valuation.Editor) {
	h := e.State()
	m.past.Set(float64(len(h.Past)))
	m.future.Set(float64(len(h.Future)))
	n := 0
	for _, f := range e.Fields() {
		if f.Mode == valuation.Auto {
			n++
		}
	}
	m.auto.Set(float64(n))
}
