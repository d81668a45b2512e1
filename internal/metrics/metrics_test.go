package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(Invocations.WithLabelValues("OPEN_APP", "success"))
	Invocations.WithLabelValues("OPEN_APP", "success").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Invocations.WithLabelValues("OPEN_APP", "success")))

	fb := testutil.ToFloat64(AuditFallbacks)
	AuditFallbacks.Inc()
	assert.Equal(t, fb+1, testutil.ToFloat64(AuditFallbacks))
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0") }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
