package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/xiaonanln/liveroute/config"
	"github.com/xiaonanln/liveroute/util/logger"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to YAML configuration file")
		logLevel   = flag.String("log-level", "", "Override log_level from the configuration file")
	)
	flag.Parse()

	if *configFile == "" {
		log.Fatal("--config is required")
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger.SetDefaultLevel(level)

	a, err := newAgent(cfg)
	if err != nil {
		log.Fatalf("Failed to create agent: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- a.run(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
		err = <-errChan
	case err = <-errChan:
	}
	if err != nil {
		log.Printf("Agent error: %v", err)
	}

	if closeErr := a.close(); closeErr != nil {
		log.Printf("Failed to release connections: %v", closeErr)
	}
	log.Println("Route agent stopped")
	if err != nil {
		os.Exit(1)
	}
}
