package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/rpcrelay/observe"
	"github.com/jonwraymond/rpcrelay/server"
	"github.com/jonwraymond/rpcrelay/upstream"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addConfigFlags(cmd.Flags())
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := observe.NewLogger(cfg.Logging)

	doc, err := upstream.LoadConfig(cfg.Upstreams)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs, err := observe.NewObserver(ctx, cfg.Observe(version), logger)
	if err != nil {
		return err
	}

	srv, err := server.Build(ctx, cfg, doc, version, obs, logger)
	if err != nil {
		_ = obs.Shutdown(context.Background())
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), obs.Shutdown(shutdownCtx))
	})
	return g.Wait()
}
