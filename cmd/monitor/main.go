package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	monitorapp "github.com/postfiat/pftscan/app/monitor"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := monitorapp.Initialize(ctx)

	app.Start(ctx)
}
