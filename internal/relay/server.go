package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/classify"
	"github.com/MiniGun1239/Speech-Regulator/internal/config"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
)

// lexicalThreshold flags any chunk whose transcript scores a lexical hit
const lexicalThreshold = 0.5

// Detector transcribes header-stripped PCM-16 audio
type Detector interface {
	TranscribePCM(ctx context.Context, pcm []byte, sampleRate int) (string, error)
}

// Server is the central detection endpoint of the relay protocol. It accepts
// sensor connections, inspects each received chunk and answers with a
// verdict byte. A failure on one connection never affects the listener or
// other connections.
type Server struct {
	config   *config.RelayConfig
	detector Detector
	lexicon  *classify.Lexical
	buffer   *RollingBuffer
	logger   *slog.Logger
	metrics  *metrics.Metrics

	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a relay detection server
func NewServer(cfg *config.RelayConfig, detector Detector, logger *slog.Logger, m *metrics.Metrics) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:   cfg,
		detector: detector,
		lexicon:  classify.NewLexical(),
		buffer:   NewRollingBuffer(DefaultBufferDepth),
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for sensor connections
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.logger.Info("Relay server started",
		slog.String("address", listener.Addr().String()),
		slog.String("forensic_dir", s.config.ForensicDir),
	)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.logger.Info("Stopping relay server...")

	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("Error closing listener", slog.String("error", err.Error()))
		}
	}

	s.wg.Wait()

	s.logger.Info("Relay server stopped")
	return nil
}

// Addr returns the bound listener address, useful when port 0 was requested
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// acceptLoop accepts sensor connections until the listener closes
func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			s.logger.Error("Accept failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection serves one sensor until it disconnects. Each frame is
// buffered, inspected and answered; a malformed frame aborts only this
// connection because the stream offset can no longer be trusted.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	s.metrics.RecordRelayConnectionOpened()
	defer s.metrics.RecordRelayConnectionClosed()

	s.logger.Info("Sensor connected", slog.String("remote", remote))

	for {
		payload, err := ReadFrame(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Sensor disconnected", slog.String("remote", remote))
			} else {
				s.metrics.RecordRelayFrameError()
				s.logger.Error("Dropping sensor connection",
					slog.String("remote", remote),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		s.buffer.Push(payload)

		flagged := s.inspect(payload, remote)

		if err := WriteVerdict(conn, flagged); err != nil {
			s.logger.Error("Failed to send verdict",
				slog.String("remote", remote),
				slog.String("error", err.Error()),
			)
			return
		}
		s.metrics.RecordRelayVerdict(flagged, len(payload))

		if flagged {
			s.persistEvidence(remote)
		}
	}
}

// inspect transcribes one chunk and matches the transcript against the
// flagged term list. Undecodable or untranscribable chunks are clean: the
// relay fails open the same way the local pipeline does.
func (s *Server) inspect(payload []byte, remote string) bool {
	if len(payload) == 0 {
		return false
	}

	pcm, sampleRate, err := audio.StripWAVHeader(payload)
	if err != nil {
		s.metrics.RecordRelayFrameError()
		s.logger.Warn("Undecodable audio chunk",
			slog.String("remote", remote),
			slog.Int("size", len(payload)),
			slog.String("error", err.Error()),
		)
		return false
	}

	text, err := s.detector.TranscribePCM(s.ctx, pcm, sampleRate)
	if err != nil {
		s.logger.Error("Relay transcription failed",
			slog.String("remote", remote),
			slog.String("error", err.Error()),
		)
		return false
	}
	if text == "" {
		return false
	}

	scores := s.lexicon.Predict(text)
	flagged := classify.Flagged(scores, lexicalThreshold)

	s.logger.Info("Relay chunk inspected",
		slog.String("remote", remote),
		slog.String("text", text),
		slog.Bool("flagged", flagged),
	)
	return flagged
}

// persistEvidence writes the rolling buffer contents to the forensic
// directory, oldest first. Failures are logged and ignored; evidence is
// best-effort and the verdict has already been sent.
func (s *Server) persistEvidence(remote string) {
	snapshot := s.buffer.Snapshot()

	if err := os.MkdirAll(s.config.ForensicDir, 0o755); err != nil {
		s.logger.Error("Failed to create forensic directory",
			slog.String("dir", s.config.ForensicDir),
			slog.String("error", err.Error()),
		)
		return
	}

	for i, chunk := range snapshot {
		name := fmt.Sprintf("evidence_%s_%d.wav", uuid.New().String(), i)
		path := filepath.Join(s.config.ForensicDir, name)

		if err := os.WriteFile(path, chunk, 0o644); err != nil {
			s.logger.Error("Failed to persist evidence chunk",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.logger.Info("Evidence chunk persisted",
			slog.String("remote", remote),
			slog.String("path", path),
			slog.Int("size", len(chunk)),
		)
	}
}
