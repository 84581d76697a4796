package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonardcser/kv-handlers/internal/envelope"
)

// shutdownTimeout is the time given for outstanding requests to finish
// before shutdown.
const shutdownTimeout = 5 * time.Second

// Route mounts an envelope handler at a path. Every method reaches the
// handler; rejecting methods is the handler's job.
type Route struct {
	Name    string
	Path    string
	Handler envelope.Handler
}

type Config struct {
	Routes  []Route
	Version string
	// AccessLog receives Apache combined log lines. Nil disables them.
	AccessLog io.Writer
	Registry  *prometheus.Registry
}

// NewRouter builds the HTTP handler serving cfg.Routes, /healthz and /metrics.
func NewRouter(log *slog.Logger, cfg Config) http.Handler {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := newMetrics(reg)

	r := mux.NewRouter()
	for _, route := range cfg.Routes {
		r.Handle(route.Path, m.instrument(route.Name, Adapt(route.Handler, log)))
	}
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := envelope.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"version": cfg.Version,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(resp.Body)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	var h http.Handler = r
	if cfg.AccessLog != nil {
		h = gorillaHandlers.CombinedLoggingHandler(cfg.AccessLog, h)
	}
	return gorillaHandlers.RecoveryHandler(
		gorillaHandlers.RecoveryLogger(recoveryLogger{log}),
	)(h)
}

// Serve runs an HTTP server on addr until ctx is cancelled, then shuts it
// down gracefully.
func Serve(ctx context.Context, log *slog.Logger, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errch := make(chan error, 1)
	go func() {
		log.Info("Started HTTP server", "addr", addr)
		errch <- srv.ListenAndServe()
	}()

	select {
	case err := <-errch:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Gracefully shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// recoveryLogger routes panics recovered by gorilla/handlers to slog.
type recoveryLogger struct{ log *slog.Logger }

func (l recoveryLogger) Println(v ...any) {
	l.log.Error("Recovered from panic", "panic", v)
}
