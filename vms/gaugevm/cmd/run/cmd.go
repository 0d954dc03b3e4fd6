// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/vegauge/vms/gaugevm"
)

const (
	baseURL           = "/ext"
	metricsURL        = "/metrics"
	readHeaderTimeout = 5 * time.Second
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs a gauge VM with its JSON-RPC API",
		RunE:  runFunc,
	}
	AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	cfg, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.NewLogger("gaugevm")
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}

	configBytes, err := json.Marshal(cfg.VM)
	if err != nil {
		return err
	}
	vm := gaugevm.New(logger, registry)
	if err := vm.Initialize(ctx, memdb.New(), cfg.Genesis, configBytes); err != nil {
		return fmt.Errorf("failed to initialize VM: %w", err)
	}

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		return err
	}
	router := mux.NewRouter()
	for ext, handler := range handlers {
		router.Handle(baseURL+"/"+gaugevm.Name+ext, handler)
	}
	router.Handle(metricsURL, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr: net.JoinHostPort(cfg.HTTPHost, strconv.Itoa(int(cfg.HTTPPort))),
		Handler: cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
		}).Handler(router),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API server listening",
			"address", server.Addr,
			"endpoint", baseURL+"/"+gaugevm.Name,
			"version", gaugevm.Version,
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		// If shutdown times out, make sure the server is still closed.
		_ = server.Close()
		return errors.Join(err, vm.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
