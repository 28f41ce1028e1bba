package assignment

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
)

// Server exposes the assignment query endpoint as a manager runnable.
type Server struct {
	addr    string
	handler http.Handler
	log     logr.Logger
}

// NewServer wires the lookup handler onto a mux and returns the runnable
// the manager starts alongside the controllers.
func NewServer(addr string, tracker *Tracker, log logr.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/v1/assignment", &LookupHandler{
		Tracker: tracker,
		Log:     log,
	})

	return &Server{
		addr:    addr,
		handler: mux,
		log:     log,
	}
}

// NeedLeaderElection implements LeaderElectionRunnable. Lookups are served
// from the local snapshot on every replica.
func (s *Server) NeedLeaderElection() bool {
	return false
}

// Start serves until the context is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", s.addr, err)
	}

	serveErr := make(chan error, 1)
	go func() {
		s.log.Info("starting assignment query server", "addr", s.addr)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down assignment query server")
		return server.Shutdown(shutdownCtx)
	}
}
