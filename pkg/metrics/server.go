package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Serve exposes gatherer on :port/metrics for worker processes until ctx ends.
// An empty port disables the listener.
func Serve(ctx context.Context, logg *logger.Logger, port string, gatherer prometheus.Gatherer) {
	if port == "" || gatherer == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) && logg != nil {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
}
