package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MiniGun1239/Speech-Regulator/internal/alert"
	"github.com/MiniGun1239/Speech-Regulator/internal/config"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
	"github.com/MiniGun1239/Speech-Regulator/internal/pipeline"
)

// HTTPServer provides HTTP API endpoints for monitoring and management
type HTTPServer struct {
	server       *http.Server
	logger       *slog.Logger
	config       *config.Config
	orchestrator *pipeline.Orchestrator
	sink         *alert.Sink
	metrics      *metrics.Metrics

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger,
	appConfig *config.Config, orchestrator *pipeline.Orchestrator, sink *alert.Sink, m *metrics.Metrics) *HTTPServer {

	h := &HTTPServer{
		logger:       logger,
		config:       appConfig,
		orchestrator: orchestrator,
		sink:         sink,
		metrics:      m,
		startTime:    time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Statistics endpoint
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Audit log endpoint
	mux.HandleFunc("/events", h.withMetrics("/events", h.handleEvents))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Detection loop control endpoints
	mux.HandleFunc("/detection/enable", h.withMetrics("/detection/enable", h.handleEnable))
	mux.HandleFunc("/detection/disable", h.withMetrics("/detection/disable", h.handleDisable))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.Handler())

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		// Call the original handler
		handler(ww, r)

		// Record metrics
		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		// Record error if status code indicates an error
		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	stats := h.orchestrator.Stats()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "speech-regulator",
			"version": "1.0.0",
		},
		"components": map[string]interface{}{
			"detection_loop": map[string]interface{}{
				"status":         "running",
				"enabled":        stats.Enabled,
				"cycles_started": stats.CyclesStarted,
				"cycles_skipped": stats.CyclesSkipped,
			},
			"audit_log": map[string]interface{}{
				"status": "running",
				"path":   h.sink.AuditPath(),
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.orchestrator.Stats()
	uptime := time.Since(h.startTime)

	response := map[string]interface{}{
		"uptime":    uptime.String(),
		"timestamp": time.Now().UTC(),
		"detection": stats,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleEvents implements the /events endpoint returning the audit log
func (h *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events, err := h.sink.ReadEvents()
	if err != nil {
		h.logger.Error("Failed to read audit log", slog.String("error", err.Error()))
		http.Error(w, "Failed to read audit log", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"total_events": len(events),
		"timestamp":    time.Now().UTC(),
		"events":       events,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Return sanitized configuration (remove sensitive data)
	sanitizedConfig := map[string]interface{}{
		"audio": map[string]interface{}{
			"sample_rate":      h.config.Audio.SampleRate,
			"channels":         h.config.Audio.Channels,
			"bit_depth":        h.config.Audio.BitDepth,
			"capture_duration": h.config.Audio.CaptureDuration,
		},
		"stt": map[string]interface{}{
			"model_dir":  h.config.STT.ModelDir,
			"model_size": h.config.STT.ModelSize,
			"language":   h.config.STT.Language,
			"endpoint":   h.config.STT.Endpoint,
			// Note: API key is intentionally omitted for security
		},
		"classifier": map[string]interface{}{
			"model_dir": h.config.Classifier.ModelDir,
			"threshold": h.config.Classifier.Threshold,
		},
		"pipeline": map[string]interface{}{
			"poll_interval": h.config.Pipeline.PollInterval,
			"start_enabled": h.config.Pipeline.StartEnabled,
		},
		"relay": map[string]interface{}{
			"port":           h.config.Relay.Port,
			"chunk_duration": h.config.Relay.ChunkDuration,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sanitizedConfig)
}

// handleEnable implements the POST /detection/enable endpoint
func (h *HTTPServer) handleEnable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.orchestrator.Enable()
	h.writeDetectionState(w)
}

// handleDisable implements the POST /detection/disable endpoint
func (h *HTTPServer) handleDisable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.orchestrator.Disable()
	h.writeDetectionState(w)
}

// writeDetectionState reports the current loop state after a control call
func (h *HTTPServer) writeDetectionState(w http.ResponseWriter) {
	response := map[string]interface{}{
		"enabled":   h.orchestrator.Enabled(),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Speech Regulator",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":                        "API documentation",
			"GET /health":                  "Service health check",
			"GET /stats":                   "Detection loop statistics",
			"GET /events":                  "Audit log of flagged utterances",
			"GET /config":                  "Get service configuration",
			"POST /detection/enable":       "Enable the detection loop",
			"POST /detection/disable":      "Disable the detection loop",
			"GET /metrics":                 "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
