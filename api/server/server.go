// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const (
	baseURL              = "/ext"
	maxConcurrentStreams = 64
)

var (
	_ Server = (*server)(nil)

	ErrDuplicateRoute = errors.New("duplicate route")
)

// Server maintains the HTTP router
type Server interface {
	// AddRoute registers [handler] under /ext/[endpoint].
	AddRoute(handler http.Handler, endpoint string) error
	// Dispatch starts the API server
	Dispatch() error
	// Shutdown this server
	Shutdown() error
}

type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"readTimeout"`
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout"`
	WriteTimeout      time.Duration `json:"writeHeaderTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout"`
}

func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

type server struct {
	// log this server writes to
	log log.Logger

	shutdownTimeout time.Duration

	metrics *routeMetrics

	lock   sync.Mutex
	routes map[string]struct{}
	mux    *http.ServeMux

	srv *http.Server

	// Listener used to serve traffic
	listener net.Listener
}

// New returns an instance of a Server.
func New(
	log log.Logger,
	listener net.Listener,
	allowedOrigins []string,
	shutdownTimeout time.Duration,
	registerer metric.Registerer,
	httpConfig HTTPConfig,
) (Server, error) {
	m, err := newMetrics(registerer)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	handler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: true,
	}).Handler(mux)

	httpServer := &http.Server{
		Handler: h2c.NewHandler(
			handler,
			&http2.Server{
				MaxConcurrentStreams: maxConcurrentStreams,
			}),
		ReadTimeout:       httpConfig.ReadTimeout,
		ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
		WriteTimeout:      httpConfig.WriteTimeout,
		IdleTimeout:       httpConfig.IdleTimeout,
	}

	log.Info("API created with allowed origins: " + strings.Join(allowedOrigins, ","))

	return &server{
		log:             log,
		shutdownTimeout: shutdownTimeout,
		metrics:         m,
		routes:          make(map[string]struct{}),
		mux:             mux,
		srv:             httpServer,
		listener:        listener,
	}, nil
}

func (s *server) AddRoute(handler http.Handler, endpoint string) error {
	url := fmt.Sprintf("%s/%s", baseURL, endpoint)

	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.routes[url]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, url)
	}
	s.log.Info("adding route",
		log.String("url", url),
	)
	s.routes[url] = struct{}{}
	s.mux.Handle(url, s.metrics.instrument(endpoint, handler))
	return nil
}

func (s *server) Dispatch() error {
	err := s.srv.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	err := s.srv.Shutdown(ctx)
	cancel()

	// If shutdown times out, make sure the server is still shutdown.
	_ = s.srv.Close()
	return err
}
