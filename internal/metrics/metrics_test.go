package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordMetaepochAccumulatesCost(t *testing.T) {
	before := testutil.ToFloat64(evaluationCost.WithLabelValues("7"))
	beforeRuns := testutil.ToFloat64(metaepochs.WithLabelValues("7"))
	RecordMetaepochCost(7, 2.5)
	RecordMetaepochCost(7, 1.5)
	RecordMetaepoch(7)
	assert.InDelta(t, before+4.0, testutil.ToFloat64(evaluationCost.WithLabelValues("7")), 1e-12)
	assert.Equal(t, beforeRuns+1, testutil.ToFloat64(metaepochs.WithLabelValues("7")))
}

func TestSetNodeCounts(t *testing.T) {
	SetNodeCounts(1, 3, 2, 1)
	assert.Equal(t, 3.0, testutil.ToFloat64(nodes.WithLabelValues("1", "alive")))
	assert.Equal(t, 2.0, testutil.ToFloat64(nodes.WithLabelValues("1", "ripe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(nodes.WithLabelValues("1", "dead")))
}

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()
}
