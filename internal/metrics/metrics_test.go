package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestInitializeIsIdempotent(t *testing.T) {
	assert.Same(t, Initialize(), Initialize())
	assert.Same(t, Get(), Initialize())
}

func TestRecordNotificationOutcomes(t *testing.T) {
	m := Get()
	created := m.NotificationsTotal.WithLabelValues("follow", "created")
	suppressed := m.NotificationsTotal.WithLabelValues("follow", "suppressed")
	beforeCreated := counterValue(t, created)
	beforeSuppressed := counterValue(t, suppressed)

	RecordNotification("follow", true)
	RecordNotification("follow", false)
	RecordNotification("follow", false)

	assert.Equal(t, beforeCreated+1, counterValue(t, created))
	assert.Equal(t, beforeSuppressed+2, counterValue(t, suppressed))
}

func TestRecordRedisOperationStatus(t *testing.T) {
	counter := Get().RedisOperationsTotal.WithLabelValues("get", "error")
	before := counterValue(t, counter)
	RecordRedisOperation("get", 0, assert.AnError)
	assert.Equal(t, before+1, counterValue(t, counter))
}
