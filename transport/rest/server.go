package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

func NewRouter(handlers Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/ping", handlers.PingHandler).Methods(http.MethodGet)
	router.HandleFunc("/stats", handlers.StatsHandler).Methods(http.MethodGet)

	return router
}

// Start - starts HTTP server and stops it when ctx is done.
func Start(ctx context.Context, port string, handlers Handlers) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handlers),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
