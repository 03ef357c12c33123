package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/config"
	"github.com/MiniGun1239/Speech-Regulator/internal/logging"
	"github.com/MiniGun1239/Speech-Regulator/internal/relay"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "speech-regulator-sensor"
	serviceVersion    = "1.0.0"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	serverAddr := flag.String("server", "", "Relay server address (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *serverAddr != "" {
		cfg.Relay.ServerAddress = *serverAddr
	}
	if cfg.Relay.ServerAddress == "" {
		cfg.Relay.ServerAddress = fmt.Sprintf("127.0.0.1:%d", cfg.Relay.Port)
	}

	// Initialize logger based on configuration
	logger := logging.New(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("server", cfg.Relay.ServerAddress),
		slog.Float64("chunk_duration", cfg.Relay.ChunkDuration),
	)

	// Initialize microphone capture; the sensor records in relay chunk
	// lengths, not the local pipeline's capture length
	source, err := audio.NewPortAudioSource(audio.CaptureConfig{
		SampleRate:      cfg.Audio.SampleRate,
		Duration:        cfg.Relay.GetChunkDuration(),
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}, logger)
	if err != nil {
		logger.Error("Failed to open microphone", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer source.Close()

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := relay.NewClient(&cfg.Relay, source, logger, printResult)

	done := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(done)
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	cancel()
	<-done

	logger.Info("Service stopped")
}

// printResult shows each verdict on the sensor's console
func printResult(result relay.Result) {
	switch result {
	case relay.ResultFlagged:
		fmt.Println("!! flagged speech detected")
	case relay.ResultClean:
		fmt.Println("   chunk clean")
	case relay.ResultUnknown:
		fmt.Println("?? no verdict (server unreachable)")
	}
}
