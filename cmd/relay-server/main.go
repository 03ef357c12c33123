package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MiniGun1239/Speech-Regulator/internal/config"
	"github.com/MiniGun1239/Speech-Regulator/internal/logging"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
	"github.com/MiniGun1239/Speech-Regulator/internal/relay"
	"github.com/MiniGun1239/Speech-Regulator/internal/transcribe"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "speech-regulator-relay"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger based on configuration
	logger := logging.New(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Relay.Port),
		slog.String("bind_address", cfg.Relay.BindAddress),
		slog.String("vosk_model_path", cfg.Relay.VoskModelPath),
		slog.String("forensic_dir", cfg.Relay.ForensicDir),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()

	// The relay server loads its recognition model eagerly: a sensor must
	// never connect to a server that cannot inspect its chunks
	detector, err := transcribe.NewVosk(cfg.Relay.VoskModelPath)
	if err != nil {
		logger.Error("Failed to load recognition model", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer detector.Close()
	logger.Info("Recognition model loaded",
		slog.String("path", cfg.Relay.VoskModelPath),
	)

	// Start the relay server
	srv := relay.NewServer(&cfg.Relay, detector, logger, appMetrics)
	if err := srv.Start(); err != nil {
		logger.Error("Failed to start relay server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	if err := srv.Stop(); err != nil {
		logger.Error("Error stopping relay server", slog.String("error", err.Error()))
	}

	logger.Info("Service stopped")
}
