package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"arbor/cmd/arbor/cmd"
	"arbor/core/logger"
)

func main() {
	ctx := logger.WithComponentName(context.Background(), "main")

	defer func() {
		// Sync failures on shutdown are expected when stdout is a terminal.
		_ = logger.Logger.Sync()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info(ctx, "Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	cmd.Execute(ctx)
}
