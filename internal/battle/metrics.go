package battle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes battle gauges and counters to Prometheus.
type Metrics struct {
	queueWaiting    *prometheus.GaugeVec
	activeRooms     prometheus.Gauge
	matches         *prometheus.CounterVec
	pairingFailures *prometheus.CounterVec
	gamesFinished   *prometheus.CounterVec
	answers         *prometheus.CounterVec
	connections     prometheus.Gauge
}

// NewMetrics registers the battle collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queueWaiting: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battle_queue_waiting",
			Help: "Players waiting in the matchmaking queue.",
		}, []string{"tier"}),
		activeRooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "battle_active_rooms",
			Help: "Rooms currently registered.",
		}),
		matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_matches_total",
			Help: "Rooms created from matched pairs.",
		}, []string{"tier"}),
		pairingFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_pairing_failures_total",
			Help: "Pairs abandoned because no question set could be built.",
		}, []string{"tier"}),
		gamesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_games_finished_total",
			Help: "Finished rooms by reason.",
		}, []string{"reason"}),
		answers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "battle_answers_total",
			Help: "Resolved answers by outcome.",
		}, []string{"outcome"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "battle_connections",
			Help: "Open battle sockets.",
		}),
	}
}

func (m *Metrics) setQueueSizes(sizes map[string]int) {
	for _, tier := range Tiers {
		m.queueWaiting.WithLabelValues(tier).Set(float64(sizes[tier]))
	}
}

func (m *Metrics) answered(out answerOutcome) {
	outcome := "wrong"
	switch {
	case out.TimedOut:
		outcome = "timeout"
	case out.Correct:
		outcome = "correct"
	}
	m.answers.WithLabelValues(outcome).Inc()
}
