package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/server"
	"github.com/cwbudde/blendopt/internal/store"
)

var (
	serveAddr    string
	serveDataDir string
	noPersist    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP job API",
	Long: `Serves POST /api/v1/runs and friends. Each request runs the optimizers in
the background; finished runs are saved to the data directory unless
--no-persist is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Data directory (overrides store.data_dir)")
	serveCmd.Flags().BoolVar(&noPersist, "no-persist", false, "Keep runs in memory only")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveDataDir != "" {
		cfg.Store.DataDir = serveDataDir
	}
	if noPersist {
		cfg.Server.Persist = false
	}

	var st *store.FSStore
	if cfg.Server.Persist {
		var err error
		st, err = store.NewFSStore(cfg.Store.DataDir, logger)
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
	}

	srv := server.NewServer(cfg.Server.Addr, cfg.Optimizer, st, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("received shutdown signal")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
