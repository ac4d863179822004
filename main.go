package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/dnldd/stratus/service"
)

// handleTermination processes context cancellation signals or interrupt signals from the OS.
func handleTermination(ctx context.Context, cancel context.CancelFunc) {
	// Listen for interrupt signals.
	signals := []os.Signal{os.Interrupt}
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, signals...)

	// Wait for the context to be cancelled or an interrupt signal.
	for {
		select {
		case <-ctx.Done():
			return

		case <-interrupt:
			cancel()
		}
	}
}

func main() {
	var cfg Config
	err := loadConfig(&cfg, "")
	if err != nil {
		log.Printf("loading config: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stratusCfg := service.StratusConfig{
		StrategyFilePath:     cfg.StrategyFilePath,
		ExchangeBaseURL:      cfg.ExchangeBaseURL,
		ExchangeWSURL:        cfg.ExchangeWSURL,
		ExchangeAPIKey:       cfg.ExchangeAPIKey,
		DatabaseEndpoint:     cfg.DatabaseEndpoint,
		DatabaseUser:         cfg.DatabaseUser,
		DatabasePass:         cfg.DatabasePass,
		Backtest:             cfg.Backtest,
		BacktestDataFilepath: cfg.BacktestDataFilepath,
		Cancel:               cancel,
	}
	stratus, err := service.NewStratus(ctx, &stratusCfg)
	if err != nil {
		log.Printf("creating stratus service: %v", err)
		return
	}

	go handleTermination(ctx, cancel)
	stratus.Run(ctx)
}
