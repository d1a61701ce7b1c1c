package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"bankledger/internal/app"
	"bankledger/internal/config"
	"bankledger/internal/logger"
)

func main() {
	conf := config.Load()
	l := logger.New(os.Stdout, conf.IsDevelopment())

	if err := conf.Validate(); err != nil {
		l.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.New(conf, l).Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			l.Info("graceful shutdown")
			return
		}
		l.Error("server stopped", "error", err)
		stop()
		os.Exit(1)
	}
}
