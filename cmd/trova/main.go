package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trovahq/trova/internal/agent"
	"github.com/trovahq/trova/internal/api"
	"github.com/trovahq/trova/internal/config"
	"github.com/trovahq/trova/internal/db"
	"github.com/trovahq/trova/internal/logging"
	"github.com/trovahq/trova/internal/report"
)

const version = "0.1.0-dev"

func main() {
	configPath := flag.String("config", "trova.yaml", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Trova agent v%s\n", version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New()
	log.WithField("version", version).Info("trova agent starting")

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()
	if err := database.Migrate(); err != nil {
		return err
	}

	ag, err := agent.New(cfg, log)
	if err != nil {
		return err
	}

	reports := api.NewClient(cfg.APIBaseURL, cfg.AuthToken, logging.Component(log, "api"))
	drafts := report.NewController(database, reports, logging.Component(log, "draft"))

	bridge := api.NewServer(api.ServerConfig{
		Addr: cfg.ListenAddr,
		Status: func() api.Status {
			return api.Status{
				State:             ag.State().String(),
				ReconnectAttempts: ag.ReconnectAttempts(),
				Rooms:             ag.Rooms(),
				UserID:            ag.UserID(),
			}
		},
		Feed:   ag.Feed(),
		Drafts: drafts,
		Log:    logging.Component(log, "bridge"),
	})

	if err := ag.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bridge.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("bridge server failed")
		}
	}

	ag.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := bridge.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("bridge shutdown failed")
	}

	return nil
}
