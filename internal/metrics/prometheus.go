package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements Collector on client_golang vectors.
type Prometheus struct {
	rounds        *prometheus.CounterVec
	roundDuration prometheus.Histogram
	pairs         prometheus.Histogram
	rejected      *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	content       *prometheus.CounterVec
	openGroups    prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairwise",
			Name:      "rounds_total",
			Help:      "Rounds completed, by odd-seat handling.",
		}, []string{"odd"}),
		roundDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pairwise",
			Name:      "round_duration_seconds",
			Help:      "Time to plan and persist a round.",
			Buckets:   prometheus.DefBuckets,
		}),
		pairs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pairwise",
			Name:      "round_pairs",
			Help:      "Pairs produced per round.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairwise",
			Name:      "rounds_rejected_total",
			Help:      "Round requests that failed, by reason.",
		}, []string{"reason"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairwise",
			Name:      "tokens_dispensed_total",
			Help:      "Group tokens handed out.",
		}, []string{"collision"}),
		content: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairwise",
			Name:      "content_dispensed_total",
			Help:      "Prompts dispensed, by selection source.",
		}, []string{"source"}),
		openGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pairwise",
			Name:      "open_groups",
			Help:      "Groups created and not yet closed by this process.",
		}),
	}
	for _, c := range []prometheus.Collector{p.rounds, p.roundDuration, p.pairs, p.rejected, p.tokens, p.content, p.openGroups} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RoundCompleted(pairs int, supervisorPaired, sittingOut bool, seconds float64) {
	odd := "none"
	switch {
	case supervisorPaired:
		odd = "supervisor"
	case sittingOut:
		odd = "sit_out"
	}
	p.rounds.WithLabelValues(odd).Inc()
	p.roundDuration.Observe(seconds)
	p.pairs.Observe(float64(pairs))
}

func (p *Prometheus) RoundRejected(reason string) {
	p.rejected.WithLabelValues(reason).Inc()
}

func (p *Prometheus) TokenDispensed(collision bool) {
	p.tokens.WithLabelValues(strconv.FormatBool(collision)).Inc()
}

func (p *Prometheus) ContentDispensed(source string) {
	p.content.WithLabelValues(source).Inc()
}

func (p *Prometheus) GroupsChanged(delta int) {
	p.openGroups.Add(float64(delta))
}
