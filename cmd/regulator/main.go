package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MiniGun1239/Speech-Regulator/internal/alert"
	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/classify"
	"github.com/MiniGun1239/Speech-Regulator/internal/config"
	"github.com/MiniGun1239/Speech-Regulator/internal/logging"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
	"github.com/MiniGun1239/Speech-Regulator/internal/pipeline"
	"github.com/MiniGun1239/Speech-Regulator/internal/server"
	"github.com/MiniGun1239/Speech-Regulator/internal/transcribe"
	"github.com/MiniGun1239/Speech-Regulator/internal/vad"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "speech-regulator"
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

	// Log service startup
	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	// Log configuration summary (without sensitive data)
	logger.Info("Configuration loaded",
		slog.Int("sample_rate", cfg.Audio.SampleRate),
		slog.Float64("capture_duration", cfg.Audio.CaptureDuration),
		slog.String("stt_model_dir", cfg.STT.ModelDir),
		slog.String("stt_endpoint", cfg.STT.Endpoint),
		slog.String("classifier_model_dir", cfg.Classifier.ModelDir),
		slog.Float64("threshold", cfg.Classifier.Threshold),
		slog.Float64("poll_interval", cfg.Pipeline.PollInterval),
		slog.String("log_level", cfg.Logging.Level),
	)

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics
	appMetrics := metrics.NewMetrics()
	logger.Info("Prometheus metrics initialized")

	// Initialize classifier; the primary/fallback decision happens here and
	// is final for the process lifetime
	classifier := classify.New(classify.Config{
		ModelDir: cfg.Classifier.ModelDir,
	}, logger)
	logger.Info("Classifier initialized",
		slog.String("mode", classifier.Mode().String()),
	)

	// Initialize the speech-to-text engine
	engine, err := buildEngine(cfg, logger)
	if err != nil {
		logger.Error("Failed to create transcription engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer engine.Close()

	// Initialize the VAD gate and segmenter
	gate, err := vad.NewGate(vad.DefaultGateConfig())
	if err != nil {
		logger.Error("Failed to create VAD gate", slog.String("error", err.Error()))
		os.Exit(1)
	}
	transcriber := transcribe.NewTranscriber(engine, audio.NewSegmenter(gate), logger)

	// Initialize microphone capture
	source, err := audio.NewPortAudioSource(audio.CaptureConfig{
		SampleRate:      cfg.Audio.SampleRate,
		Duration:        cfg.Audio.GetCaptureDuration(),
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
	}, logger)
	if err != nil {
		logger.Error("Failed to open microphone", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer source.Close()
	logger.Info("Microphone source initialized")

	// Initialize alert sink
	sink := alert.NewSink(cfg.Alert.LogDir, cfg.Alert.SoundPath, logger)
	logger.Info("Alert sink initialized",
		slog.String("audit_path", sink.AuditPath()),
	)

	// Initialize the detection loop
	orchestrator := pipeline.NewOrchestrator(
		source, transcriber, classifier, sink, appMetrics, logger,
		pipeline.Options{
			PollInterval: cfg.Pipeline.GetPollInterval(),
			Threshold:    cfg.Classifier.Threshold,
			StartEnabled: cfg.Pipeline.StartEnabled,
		},
		printResult,
	)

	// Initialize HTTP API server (if enabled)
	var httpServer *server.HTTPServer
	if cfg.HTTP.Enabled {
		httpServer = server.NewHTTPServer(cfg.HTTP, logger, cfg, orchestrator, sink, appMetrics)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// Run the detection loop
	loopDone := make(chan struct{})
	go func() {
		orchestrator.Run(ctx)
		close(loopDone)
	}()

	// Read manual text input from the console; typed lines go through the
	// same classification and alerting as captured speech
	go consoleLoop(ctx, orchestrator, logger)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	logger.Info("Starting graceful shutdown...")

	// Stop HTTP server first (stop accepting new requests)
	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
		}
	}

	// Stop the detection loop and wait for it to drain
	cancel()
	<-loopDone

	// Final statistics
	stats := orchestrator.Stats()
	logger.Info("Final detection statistics",
		slog.Uint64("cycles_started", stats.CyclesStarted),
		slog.Uint64("cycles_skipped", stats.CyclesSkipped),
		slog.Uint64("transcripts", stats.Transcripts),
		slog.Uint64("detections", stats.Detections),
	)

	logger.Info("Service stopped")
}

// buildEngine selects the speech-to-text engine: remote endpoint when
// configured, local whisper model otherwise.
func buildEngine(cfg *config.Config, logger *slog.Logger) (transcribe.Engine, error) {
	if cfg.STT.Endpoint != "" {
		logger.Info("Using remote transcription endpoint",
			slog.String("endpoint", cfg.STT.Endpoint),
		)
		return transcribe.NewRemote(transcribe.RemoteConfig{
			Endpoint:      cfg.STT.Endpoint,
			APIKey:        cfg.STT.APIKey,
			Timeout:       cfg.STT.GetTimeoutDuration(),
			MaxRetries:    cfg.STT.MaxRetries,
			MaxConcurrent: cfg.STT.MaxConcurrent,
			Language:      cfg.STT.Language,
		})
	}

	logger.Info("Using local whisper engine",
		slog.String("model_dir", cfg.STT.ModelDir),
		slog.String("model_size", cfg.STT.ModelSize),
	)
	return transcribe.NewWhisper(transcribe.WhisperConfig{
		ModelDir:  cfg.STT.ModelDir,
		ModelSize: cfg.STT.ModelSize,
		Language:  cfg.STT.Language,
	}, logger), nil
}

// printResult echoes each classified utterance to the console
func printResult(event pipeline.DetectionEvent) {
	marker := " "
	if event.Flagged {
		marker = "!"
	}
	fmt.Printf("[%s] %s %s\n", event.Timestamp.Format("15:04:05"), marker, event.Text)
}

// consoleLoop classifies lines typed on stdin until EOF or shutdown
func consoleLoop(ctx context.Context, orchestrator *pipeline.Orchestrator, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/enable":
			orchestrator.Enable()
		case "/disable":
			orchestrator.Disable()
		default:
			// The result callback echoes the verdict
			orchestrator.HandleText(line)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Warn("Console input closed", slog.String("error", err.Error()))
	}
}
