package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
)

// RemoteConfig contains remote transcription endpoint configuration
type RemoteConfig struct {
	Endpoint      string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	MaxConcurrent int
	Language      string
}

// Remote is an Engine that forwards audio to a whisper-compatible HTTP
// transcription endpoint. Requests are rate limited by a semaphore and
// retried with exponential backoff.
type Remote struct {
	config     RemoteConfig
	httpClient *http.Client
	semaphore  chan struct{}
}

// remoteResponse is the subset of the endpoint response the engine consumes
type remoteResponse struct {
	Text string `json:"text"`
}

// NewRemote creates a remote transcription engine
func NewRemote(cfg RemoteConfig) (*Remote, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 3
	}

	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &Remote{
		config:     cfg,
		httpClient: httpClient,
		semaphore:  make(chan struct{}, cfg.MaxConcurrent),
	}, nil
}

// Transcribe uploads the samples as a WAV file and returns the transcript
func (r *Remote) Transcribe(ctx context.Context, samples []int16, sampleRate int) (string, error) {
	select {
	case r.semaphore <- struct{}{}:
		defer func() { <-r.semaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	wavData, err := audio.EncodeWAV(samples, sampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode request audio: %w", err)
	}

	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := r.doRequest(ctx, wavData, sampleRate)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			break
		}
	}

	return "", fmt.Errorf("transcription failed after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

// doRequest performs a single multipart upload to the transcription endpoint
func (r *Remote) doRequest(ctx context.Context, wavData []byte, sampleRate int) (string, error) {
	requestID := uuid.NewString()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", requestID+".wav")
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(wavData); err != nil {
		return "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"request_id":      requestID,
		"sample_rate":     fmt.Sprintf("%d", sampleRate),
		"response_format": "json",
	}
	if r.config.Language != "" {
		fields["language"] = r.config.Language
	}

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "application/json")
	if r.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed remoteResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}

	return parsed.Text, nil
}

// isRetryable reports whether an error is worth another attempt: network
// failures, timeouts, 5xx responses, and rate limiting.
func isRetryable(err error) bool {
	if err == context.DeadlineExceeded {
		return true
	}

	msg := err.Error()

	if strings.Contains(msg, "HTTP error 5") || strings.Contains(msg, "HTTP error 429") {
		return true
	}

	return strings.Contains(msg, "connection") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "refused")
}

// Close releases client resources
func (r *Remote) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}
