package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/cmd/utils/internal/commands"
)

func main() {
	// Flags belong to cobra; apt only reads UTILS_* environment variables.
	config, err := apt.LoadConfig("UTILS", []string{})
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel := config.GetStringOrDef("log.level", "error")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := commands.NewRoot(commands.Options{
		Config: config,
		Logger: logger,
		Out:    os.Stdout,
	})

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
