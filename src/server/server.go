package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"orderexecutor/src/bracket"
)

func newRouter(manager *bracket.Manager) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("\"/healthcheck\" error")
		}
	})

	r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(manager.Snapshot()); err != nil {
			logger.WithError(err).Error("\"/bracket\" error")
		}
	})

	return r
}

// StartStatusServer exposes a read-only view of a running bracket over HTTP.
// It returns immediately and shuts the server down when ctx is cancelled.
// An empty port disables the server.
func StartStatusServer(ctx context.Context, port string, manager *bracket.Manager) {
	if port == "" {
		return
	}

	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: newRouter(manager),
	}

	go func() {
		logger.Infof("Status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Status server crashed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Status server shutdown error")
		}
	}()
}
