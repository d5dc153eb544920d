package prometheus_metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGetAddr(t *testing.T) {
	addr, err := getAddr("127.0.0.1:123")
	if assert.Nil(t, err) {
		assert.Equal(t, "127.0.0.1:123", addr)
	}

	addr, err = getAddr("127.0.0.1")
	if assert.Nil(t, err) {
		assert.Equal(t, "127.0.0.1:9747", addr)
	}

	addr, err = getAddr("[127.0.0.1]")
	if assert.Nil(t, err) {
		assert.Equal(t, "127.0.0.1:9747", addr)
	}

	addr, err = getAddr("[::]:123")
	if assert.Nil(t, err) {
		assert.Equal(t, "[::]:123", addr)
	}

	addr, err = getAddr("::")
	if assert.Nil(t, err) {
		assert.Equal(t, "[::]:9747", addr)
	}

	addr, err = getAddr("[::]")
	if assert.Nil(t, err) {
		assert.Equal(t, "[::]:9747", addr)
	}

	addr, err = getAddr("localhost")
	if assert.Nil(t, err) {
		assert.Equal(t, "localhost:9747", addr)
	}

	_, err = getAddr("")
	assert.NotNil(t, err)

	_, err = getAddr("[::")
	assert.NotNil(t, err)

	_, err = getAddr("[]")
	assert.NotNil(t, err)
}

func TestNewWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewWithRegistry("", registry, registry)

	labels := prometheus.Labels{"position": "0", "source": "a", "destination": "b", "schedule": "every minute"}
	pm.BackupsExecCounter.With(labels).Inc()
	pm.BackupsExecCounter.With(labels).Inc()
	pm.BackupsFailCounter.With(labels).Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(pm.BackupsExecCounter.With(labels)))
	assert.Equal(t, 1.0, testutil.ToFloat64(pm.BackupsFailCounter.With(labels)))

	count, err := testutil.GatherAndCount(registry, "superbackup_executions", "superbackup_failed_executions")
	if assert.Nil(t, err) {
		assert.Equal(t, 2, count)
	}

	pm.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(pm.BackupsExecCounter))
}

func TestShutdownWithoutServer(t *testing.T) {
	registry := prometheus.NewRegistry()
	pm := NewWithRegistry("", registry, registry)
	assert.Nil(t, pm.ShutdownHTTPServer(context.Background()))
}
