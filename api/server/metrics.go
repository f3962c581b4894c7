// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/luxfi/metric"
)

const (
	methodLabel = "method"
	routeLabel  = "route"
)

// routeMetrics tracks JSON-RPC traffic per route. Average latency is
// rpc_request_seconds / rpc_requests.
type routeMetrics struct {
	requests metric.CounterVec
	seconds  metric.CounterVec
	inflight metric.Gauge
}

func newMetrics(registerer metric.Registerer) (*routeMetrics, error) {
	m := &routeMetrics{
		requests: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "rpc_requests",
				Help: "Number of API requests served",
			},
			[]string{methodLabel, routeLabel},
		),
		seconds: metric.NewCounterVec(
			metric.CounterOpts{
				Name: "rpc_request_seconds",
				Help: "Total time spent serving API requests",
			},
			[]string{methodLabel, routeLabel},
		),
		inflight: metric.NewGauge(metric.GaugeOpts{
			Name: "rpc_requests_inflight",
			Help: "Number of API requests being served",
		}),
	}

	err := errors.Join(
		registerer.Register(metric.AsCollector(m.requests)),
		registerer.Register(metric.AsCollector(m.seconds)),
		registerer.Register(metric.AsCollector(m.inflight)),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// instrument counts and times every request [handler] serves on [route].
func (m *routeMetrics) instrument(route string, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inflight.Inc()
		start := time.Now()
		handler.ServeHTTP(w, r)
		m.inflight.Dec()

		labels := metric.Labels{methodLabel: r.Method, routeLabel: route}
		m.requests.With(labels).Inc()
		m.seconds.With(labels).Add(time.Since(start).Seconds())
	})
}
