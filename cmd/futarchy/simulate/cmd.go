// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package simulate

import (
	"context"
	"net"
	"time"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/luxfi/metric"
	"github.com/spf13/cobra"

	"github.com/luxfi/futarchy"
	"github.com/luxfi/futarchy/api"
	"github.com/luxfi/futarchy/api/server"
)

const shutdownTimeout = 10 * time.Second

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "simulate",
		Short: "Replays a scenario against an in-memory engine",
		RunE:  simulateFunc,
	}
	flags := c.Flags()
	AddFlags(flags)
	return c
}

func simulateFunc(c *cobra.Command, args []string) error {
	config, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}
	scenario, err := LoadScenario(config.Scenario)
	if err != nil {
		return err
	}

	var logger log.Logger = log.NewNoOpLogger()
	if config.Verbose {
		logger = log.NewLogger("futarchy")
	}
	registry := metric.NewRegistry()
	engine, err := futarchy.New(config.Engine, memdb.New(), logger, registry)
	if err != nil {
		return err
	}
	defer engine.Close()

	runner, err := NewRunner(engine, scenario, logger)
	if err != nil {
		return err
	}
	if err := runner.Run(c.OutOrStdout()); err != nil {
		return err
	}
	if config.HTTPAddress == "" {
		return nil
	}

	// Reads are served at the scenario's final clock.
	end := runner.End()
	return serve(c.Context(), config, engine, registry, logger, func() time.Time { return end })
}

func serve(
	ctx context.Context,
	config *Config,
	engine *futarchy.Engine,
	registerer metric.Registerer,
	logger log.Logger,
	now func() time.Time,
) error {
	handler, err := api.NewHandler(api.NewService(engine, now))
	if err != nil {
		return err
	}
	listener, err := net.Listen("tcp", config.HTTPAddress)
	if err != nil {
		return err
	}
	srv, err := server.New(
		logger,
		listener,
		config.AllowedOrigins,
		shutdownTimeout,
		registerer,
		server.DefaultHTTPConfig(),
	)
	if err != nil {
		_ = listener.Close()
		return err
	}
	if err := srv.AddRoute(handler, api.ServiceName); err != nil {
		_ = listener.Close()
		return err
	}

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Dispatch()
	}()
	select {
	case <-ctx.Done():
		return srv.Shutdown()
	case err := <-errs:
		return err
	}
}
