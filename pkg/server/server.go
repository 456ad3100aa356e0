// SPDX-FileCopyrightText: SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the client and controller WebSocket endpoints and the
// auxiliary metrics and health listeners.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gardener/sprinkler/pkg/apis/config"
	"github.com/gardener/sprinkler/pkg/protocol"
)

// Handler consumes raw frames of one channel in arrival order and is told when
// the channel closes. Both protocol handlers satisfy it.
type Handler interface {
	HandleFrame(ctx context.Context, channel protocol.Channel, raw []byte)
	HandleClose(channel protocol.Channel)
}

// Server runs the WebSocket endpoints.
type Server struct {
	settings config.ServerSettings

	clientHandler Handler
	piHandler     Handler

	upgrader websocket.Upgrader
	log      logr.Logger
}

// New creates a Server for the given protocol handlers.
func New(settings config.ServerSettings, clientHandler, piHandler Handler, log logr.Logger) *Server {
	return &Server{
		settings:      settings,
		clientHandler: clientHandler,
		piHandler:     piHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Clients are mobile apps and field controllers without browser
			// origin semantics.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log.WithName("server"),
	}
}

// Start serves until the context is cancelled, then shuts the listeners down.
// It blocks.
func (s *Server) Start(ctx context.Context, metricsRegistry prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/client", s.serveWebSocket(s.clientHandler, "client"))
	mux.HandleFunc("/v1/controller", s.serveWebSocket(s.piHandler, "controller"))

	main := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.settings.BindAddress, s.settings.Port),
		Handler: mux,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.settings.BindAddress, s.settings.MetricsPort),
		Handler: metricsMux,
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.settings.BindAddress, s.settings.HealthPort),
		Handler: healthMux,
	}

	errCh := make(chan error, 3)
	for name, srv := range map[string]*http.Server{"main": main, "metrics": metricsServer, "health": healthServer} {
		s.log.Info("Listener starting", "name", name, "address", srv.Addr)
		go func(name string, srv *http.Server) {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("%s listener failed: %w", name, err)
			}
		}(name, srv)
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{main, metricsServer, healthServer} {
		_ = srv.Shutdown(shutdownCtx)
	}
	s.log.Info("Listeners stopped")
	return nil
}

// serveWebSocket upgrades the request and pumps inbound messages to the handler
// strictly in arrival order.
func (s *Server) serveWebSocket(handler Handler, kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error(err, "WebSocket upgrade failed", "kind", kind, "remote", r.RemoteAddr)
			return
		}

		channel := newChannel(conn)
		log := s.log.WithValues("kind", kind, "channelID", channel.ID(), "remote", r.RemoteAddr)
		log.V(1).Info("Channel opened")

		// The request context dies when this handler returns; the hijacked
		// connection lives on.
		go s.readLoop(context.Background(), channel, handler, log)
	}
}

func (s *Server) readLoop(ctx context.Context, channel *wsChannel, handler Handler, log logr.Logger) {
	defer func() {
		channel.markClosed()
		handler.HandleClose(channel)
		log.V(1).Info("Channel closed")
	}()

	for {
		_, raw, err := channel.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.V(1).Info("Channel read ended", "reason", err.Error())
			}
			return
		}
		handler.HandleFrame(ctx, channel, raw)
	}
}
