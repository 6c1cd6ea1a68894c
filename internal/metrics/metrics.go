package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	metaepochs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "metaepochs_total",
			Help:      "Metaepochs executed by alive nodes.",
		},
		[]string{"level"},
	)
	evaluationCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "evaluation_cost_total",
			Help:      "Fitness evaluation cost weighted by the level cost modifier.",
		},
		[]string{"level"},
	)
	nodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "nodes",
			Help:      "Nodes per level and state.",
		},
		[]string{"level", "state"},
	)
	sprouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "sprouts_total",
			Help:      "Child nodes registered by sprouting.",
		},
		[]string{"level"},
	)
	kills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "redundancy_kills_total",
			Help:      "Nodes killed by redundancy pruning.",
		},
		[]string{"level"},
	)
	stagnations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "stagnations_total",
			Help:      "Nodes turned ripe by non-progress pruning.",
		},
		[]string{"level"},
	)
	revivals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "revivals_total",
			Help:      "Tree-wide revivals after total death.",
		},
	)
	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "hms",
			Subsystem: "tree",
			Name:      "phase_duration_seconds",
			Help:      "Wall time of tree-wide phases.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(metaepochs, evaluationCost, nodes, sprouts, kills, stagnations, revivals, phaseDuration)
	})
}

func level(l int) string {
	return strconv.Itoa(l)
}

func RecordMetaepoch(l int) {
	metaepochs.WithLabelValues(level(l)).Inc()
}

func RecordMetaepochCost(l int, weightedCost float64) {
	evaluationCost.WithLabelValues(level(l)).Add(weightedCost)
}

func RecordSprout(parentLevel int) {
	sprouts.WithLabelValues(level(parentLevel + 1)).Inc()
}

func RecordKill(l int) {
	kills.WithLabelValues(level(l)).Inc()
}

func RecordStagnation(l int) {
	stagnations.WithLabelValues(level(l)).Inc()
}

func RecordRevival() {
	revivals.Inc()
}

// SetNodeCounts publishes alive/ripe/dead gauges for one level.
func SetNodeCounts(l, alive, ripe, dead int) {
	nodes.WithLabelValues(level(l), "alive").Set(float64(alive))
	nodes.WithLabelValues(level(l), "ripe").Set(float64(ripe))
	nodes.WithLabelValues(level(l), "dead").Set(float64(dead))
}

func ObservePhase(phase string, seconds float64) {
	phaseDuration.WithLabelValues(phase).Observe(seconds)
}
