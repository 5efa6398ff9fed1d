// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/heyqbnk/mini-apps-backend-template/api"
	"github.com/heyqbnk/mini-apps-backend-template/fanout"
	"github.com/heyqbnk/mini-apps-backend-template/launchparams"
	"github.com/heyqbnk/mini-apps-backend-template/lib/clock"
	"github.com/heyqbnk/mini-apps-backend-template/lib/config"
	"github.com/heyqbnk/mini-apps-backend-template/lib/report"
	"github.com/heyqbnk/mini-apps-backend-template/lib/service"
	"github.com/heyqbnk/mini-apps-backend-template/lib/version"
	"github.com/heyqbnk/mini-apps-backend-template/tenant"
	"github.com/heyqbnk/mini-apps-backend-template/users"
)

// relayFD is where a worker finds its end of the coordinator socket.
const relayFD = 3

func loadTenants(cfg *config.Config, logger *slog.Logger) (*tenant.Store, error) {
	store, err := tenant.Load(cfg.LaunchParams)
	if err != nil {
		return nil, err
	}
	logger.Info("tenant credentials loaded", "apps", store.AppIDs())
	return store, nil
}

// newAPI wires the API server for store onto bus.
func newAPI(cfg *config.Config, store *tenant.Store, bus *fanout.Bus, reporter report.Reporter, logger *slog.Logger) *api.Server {
	clk := clock.Real()
	verifier := launchparams.NewVerifier(store, launchparams.PolicyFromConfig(cfg.LaunchParams), clk)
	return api.New(api.Config{
		Server:        cfg.Server,
		Authenticator: launchparams.NewAuthenticator(verifier, reporter),
		Users:         users.NewMemory(users.Seed()...),
		Bus:           bus,
		Clock:         clk,
		Reporter:      reporter,
		Logger:        logger,
	})
}

// newReporter returns queue alone, or queue teed with Sentry when a DSN
// is configured. The returned flush waits for Sentry's outbound queue.
func newReporter(cfg *config.Config, store *tenant.Store, queue *report.Queue) (report.Reporter, func(), error) {
	if cfg.Sentry.DSN == "" {
		return queue, func() {}, nil
	}
	appIDs := make([]string, 0, store.Len())
	for _, appID := range store.AppIDs() {
		appIDs = append(appIDs, strconv.FormatInt(appID, 10))
	}
	sentryReporter, err := report.NewSentry(report.SentryOptions{
		DSN:          cfg.Sentry.DSN,
		Environment:  string(cfg.Environment),
		Release:      "miniapp-server@" + version.Info(),
		Tags:         map[string]string{"app_ids": strings.Join(appIDs, ",")},
		FlushTimeout: cfg.Sentry.FlushTimeout,
	})
	if err != nil {
		return nil, nil, err
	}
	return report.Tee(queue, sentryReporter), func() { sentryReporter.Close() }, nil
}

// serve runs bus and the HTTP server until ctx is cancelled or either
// fails. In a worker, losing the coordinator ends the process.
func serve(ctx context.Context, cfg *config.Config, relay fanout.Conn, reusePort bool, logger *slog.Logger) (err error) {
	defer func() {
		if err != nil && relay != nil {
			relay.Close()
		}
	}()
	store, err := loadTenants(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancelCause(ctx)
	queue := report.NewQueue(logger, 0)
	reporter, flush, err := newReporter(cfg, store, queue)
	if err != nil {
		cancel(nil)
		return err
	}
	go queue.Run(ctx)
	defer func() {
		cancel(nil)
		<-queue.Done()
		flush()
	}()

	bus := fanout.NewBus(fanout.BusConfig{Relay: relay, Reporter: reporter, Logger: logger})
	server := newAPI(cfg, store, bus, reporter, logger)

	busDone := make(chan error, 1)
	go func() {
		err := bus.Run(ctx)
		if err != nil {
			cancel(err)
		}
		busDone <- err
	}()

	httpServer := service.NewHTTPServer(service.HTTPServerConfig{
		Address:         cfg.Server.Address,
		Handler:         server.Handler(),
		ReusePort:       reusePort,
		OnShutdown:      []func(){server.Close},
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          logger,
	})
	serveErr := httpServer.Serve(ctx)
	cancel(nil)
	busErr := <-busDone
	return errors.Join(serveErr, busErr)
}

func runSingle(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	return serve(ctx, cfg, nil, false, logger)
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	relay, err := fanout.FileConn(os.NewFile(relayFD, "fanout-relay"))
	if err != nil {
		return fmt.Errorf("worker relay socket: %w", err)
	}
	logger.Info("worker starting")
	return serve(ctx, cfg, relay, true, logger)
}
