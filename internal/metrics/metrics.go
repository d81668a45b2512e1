package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Invocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_invocations_total",
			Help: "Utterances handled, by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	Classifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_classifications_total",
			Help: "Classifier results by deciding matcher",
		},
		[]string{"source"},
	)

	Confirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_confirmations_total",
			Help: "Confirmation gate terminal states",
		},
		[]string{"state"},
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_handler_duration_seconds",
			Help:    "Handler execution time in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"handler_id", "success"},
	)

	AuditFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_audit_fallbacks_total",
			Help: "Audit records written to the fallback channel",
		},
	)
)

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
