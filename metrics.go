package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the collectors of one app. A nil *metrics records nothing.
type metrics struct {
	simulations *prometheus.CounterVec
	clears      prometheus.Counter
	evictions   prometheus.Counter
	errorRate   prometheus.Histogram
}

// registerMetrics builds a fresh set of collectors, plus a gauge reading the
// live history size, and registers them with reg.
func registerMetrics(reg prometheus.Registerer, h *history) (*metrics, error) {
	m := &metrics{
		simulations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "quantumshield",
				Name:      "simulations_total",
				Help:      "Simulated attacks, partitioned by threat level and AI status.",
			},
			[]string{"threat_level", "ai_status"},
		),
		clears: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quantumshield",
				Name:      "history_clears_total",
				Help:      "Number of times the attack history was cleared.",
			},
		),
		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "quantumshield",
				Name:      "history_evictions_total",
				Help:      "Events dropped from the front of the bounded history.",
			},
		),
		errorRate: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "quantumshield",
				Name:      "error_rate",
				Help:      "Distribution of simulated error rates.",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
	}

	historySize := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: "quantumshield",
			Name:      "history_size",
			Help:      "Events currently held in the attack history.",
		},
		func() float64 { return float64(h.Len()) },
	)

	collectors := []prometheus.Collector{
		m.simulations,
		m.clears,
		m.evictions,
		m.errorRate,
		historySize,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *metrics) observeSimulation(e AttackEvent, evicted int) {
	if m == nil {
		return
	}

	m.simulations.WithLabelValues(string(e.ThreatLevel), string(e.AIStatus)).Inc()
	m.errorRate.Observe(float64(e.ErrorRate))
	if evicted > 0 {
		m.evictions.Add(float64(evicted))
	}
}

func (m *metrics) observeClear() {
	if m == nil {
		return
	}

	m.clears.Inc()
}
