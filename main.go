package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"photo-ingest/internal/server"
	"photo-ingest/internal/startup"
)

func main() {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		startup.LogFatal("%v", err)
	}
}
