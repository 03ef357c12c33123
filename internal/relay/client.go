package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/config"
)

// dialTimeout bounds connection establishment per chunk
const dialTimeout = 5 * time.Second

// Result is the client-side outcome of submitting one chunk
type Result int

const (
	// ResultClean means the server answered with a clean verdict
	ResultClean Result = iota
	// ResultFlagged means the server answered with a flagged verdict
	ResultFlagged
	// ResultUnknown means no verdict arrived; the chunk's status is undecided
	ResultUnknown
)

// String returns the human-readable result name
func (r Result) String() string {
	switch r {
	case ResultClean:
		return "clean"
	case ResultFlagged:
		return "flagged"
	case ResultUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Client is the sensor side of the relay protocol. It records
// fixed-duration chunks and submits each over a fresh connection, so a
// server restart costs at most one chunk. A failed submission is logged and
// the loop moves on; the sensor never buffers unsent audio.
type Client struct {
	config   *config.RelayConfig
	source   audio.Source
	logger   *slog.Logger
	onResult func(Result)
}

// NewClient creates a sensor client. onResult is invoked after every chunk
// submission, including failed ones; it may be nil.
func NewClient(cfg *config.RelayConfig, source audio.Source, logger *slog.Logger, onResult func(Result)) *Client {
	return &Client{
		config:   cfg,
		source:   source,
		logger:   logger,
		onResult: onResult,
	}
}

// Run captures and submits chunks until ctx is cancelled. Record blocks for
// the chunk duration, which paces the loop.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Info("Sensor client started",
		slog.String("server", c.config.ServerAddress),
		slog.Duration("chunk_duration", c.config.GetChunkDuration()),
	)

	for {
		if err := ctx.Err(); err != nil {
			c.logger.Info("Sensor client stopped")
			return err
		}

		chunk, err := c.source.Record(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			c.logger.Error("Chunk capture failed",
				slog.String("error", err.Error()),
			)
			// Avoid a hot loop when the device fails persistently
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
			continue
		}

		result := c.Submit(ctx, chunk)
		if c.onResult != nil {
			c.onResult(result)
		}
	}
}

// Submit sends one chunk and waits for the verdict. Any transport or
// protocol failure yields ResultUnknown rather than an error: the sensor's
// job is to keep streaming, not to resolve server trouble.
func (c *Client) Submit(ctx context.Context, chunk *audio.Chunk) Result {
	payload, err := audio.EncodeWAV(chunk.Samples, chunk.SampleRate)
	if err != nil {
		c.logger.Error("Failed to encode chunk",
			slog.String("error", err.Error()),
		)
		return ResultUnknown
	}

	flagged, err := c.exchange(ctx, payload)
	if err != nil {
		c.logger.Error("Chunk submission failed",
			slog.String("server", c.config.ServerAddress),
			slog.String("error", err.Error()),
		)
		return ResultUnknown
	}

	if flagged {
		c.logger.Warn("Server flagged chunk",
			slog.Int("size", len(payload)),
		)
		return ResultFlagged
	}
	return ResultClean
}

// exchange performs one frame round trip on a fresh connection
func (c *Client) exchange(ctx context.Context, payload []byte) (bool, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.ServerAddress)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(c.config.GetChunkDuration() + dialTimeout))
	}

	if err := WriteFrame(conn, payload); err != nil {
		return false, err
	}

	return ReadVerdict(conn)
}
