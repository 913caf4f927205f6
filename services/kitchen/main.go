package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/services/kitchen/internal/app"
)

const (
	appNamespace = "KITCHEN"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", app.AppName, app.AppVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	a, err := app.New(config, logger)
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", app.AppName, app.AppVersion, err)
	}

	if err := a.Initialize(ctx); err != nil {
		log.Fatalf("Cannot initialize %s(%s): %v", app.AppName, app.AppVersion, err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", app.AppName, app.AppVersion, err)
	}
}
