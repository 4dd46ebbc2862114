package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trustpay/internal/idempotency"
	"trustpay/internal/server"
)

var autoConnect bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		store, closeStore, err := idempotency.Open(ctx, a.cfg.Store)
		if err != nil {
			return err
		}
		defer closeStore()
		go idempotency.PruneEvery(ctx, store, a.cfg.Store.PruneInterval, a.logger.Named("idempotency"))

		if a.watcher != nil {
			a.watcher.Start(ctx)
		}
		if autoConnect {
			if _, err := a.connector.Connect(ctx); err != nil {
				a.logger.Warn("auto connect failed", zap.Error(err))
			}
		}

		apiServer := server.NewServer(a.cfg, a.session, a.client, store,
			server.WithLogger(a.logger),
			server.WithFeed(a.feed),
			server.WithRPCHealth(a.rpcHealth),
		)

		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return apiServer.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&autoConnect, "connect", false, "connect the configured signer on startup")
}
