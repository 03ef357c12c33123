package relay

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MiniGun1239/Speech-Regulator/internal/audio"
	"github.com/MiniGun1239/Speech-Regulator/internal/config"
	"github.com/MiniGun1239/Speech-Regulator/internal/metrics"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

func sharedMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewMetrics()
	})
	return testMetrics
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDetector returns a fixed transcript for every chunk
type stubDetector struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (d *stubDetector) TranscribePCM(ctx context.Context, pcm []byte, sampleRate int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.text, d.err
}

func (d *stubDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func startTestServer(t *testing.T, detector Detector) (*Server, string) {
	t.Helper()

	cfg := &config.RelayConfig{
		BindAddress: "127.0.0.1",
		Port:        0,
		ForensicDir: t.TempDir(),
	}
	// Port 0 binds an ephemeral port; the real address comes from Addr
	srv := NewServer(cfg, detector, testLogger(), sharedMetrics())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return srv, srv.Addr().String()
}

func testChunk(t *testing.T) []byte {
	t.Helper()
	payload, err := audio.EncodeWAV(make([]int16, 16000), 16000)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	return payload
}

func exchangeChunk(t *testing.T, addr string, payload []byte) bool {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := WriteFrame(conn, payload); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}
	flagged, err := ReadVerdict(conn)
	if err != nil {
		t.Fatalf("ReadVerdict() error = %v", err)
	}
	return flagged
}

func TestServerFlagsToxicTranscript(t *testing.T) {
	detector := &stubDetector{text: "so much hate in here"}
	srv, addr := startTestServer(t, detector)

	if flagged := exchangeChunk(t, addr, testChunk(t)); !flagged {
		t.Error("expected flagged verdict")
	}

	// Evidence is written after the verdict goes out, so poll briefly
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := os.ReadDir(srv.config.ForensicDir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no evidence files persisted")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerCreatesForensicDir(t *testing.T) {
	detector := &stubDetector{text: "so much hate in here"}

	// The configured directory does not exist yet; the server creates it
	// on first use.
	dir := filepath.Join(t.TempDir(), "forensics", "relay")
	cfg := &config.RelayConfig{
		BindAddress: "127.0.0.1",
		Port:        0,
		ForensicDir: dir,
	}
	srv := NewServer(cfg, detector, testLogger(), sharedMetrics())
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	if flagged := exchangeChunk(t, srv.Addr().String(), testChunk(t)); !flagged {
		t.Error("expected flagged verdict")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := os.ReadDir(dir)
		if err == nil && len(entries) > 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no evidence files in %s: ReadDir error = %v", dir, err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerPassesCleanTranscript(t *testing.T) {
	detector := &stubDetector{text: "a completely ordinary sentence"}
	srv, addr := startTestServer(t, detector)

	if flagged := exchangeChunk(t, addr, testChunk(t)); flagged {
		t.Error("expected clean verdict")
	}

	entries, err := os.ReadDir(srv.config.ForensicDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("evidence persisted for a clean chunk: %d files", len(entries))
	}
}

func TestServerEmptyChunkIsClean(t *testing.T) {
	detector := &stubDetector{text: "kill"}
	_, addr := startTestServer(t, detector)

	if flagged := exchangeChunk(t, addr, []byte{}); flagged {
		t.Error("empty chunk was flagged")
	}
	if detector.callCount() != 0 {
		t.Errorf("detector called %d times for an empty chunk", detector.callCount())
	}
}

func TestServerUndecodableChunkIsClean(t *testing.T) {
	detector := &stubDetector{text: "kill"}
	_, addr := startTestServer(t, detector)

	if flagged := exchangeChunk(t, addr, []byte("not a wav file at all")); flagged {
		t.Error("undecodable chunk was flagged")
	}
	if detector.callCount() != 0 {
		t.Errorf("detector called %d times for an undecodable chunk", detector.callCount())
	}
}

func TestServerTranscriptionFailureIsClean(t *testing.T) {
	detector := &stubDetector{err: io.ErrUnexpectedEOF}
	_, addr := startTestServer(t, detector)

	if flagged := exchangeChunk(t, addr, testChunk(t)); flagged {
		t.Error("chunk flagged despite transcription failure")
	}
}

func TestServerHandlesSequentialChunks(t *testing.T) {
	detector := &stubDetector{text: "nothing wrong here"}
	_, addr := startTestServer(t, detector)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	for i := 0; i < 3; i++ {
		if err := WriteFrame(conn, testChunk(t)); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
		if _, err := ReadVerdict(conn); err != nil {
			t.Fatalf("ReadVerdict() error = %v", err)
		}
	}
	if detector.callCount() != 3 {
		t.Errorf("detector calls = %d, want 3", detector.callCount())
	}
}

func TestClientSubmitRoundTrip(t *testing.T) {
	detector := &stubDetector{text: "i will kill it on stage"}
	_, addr := startTestServer(t, detector)

	cfg := &config.RelayConfig{ServerAddress: addr, ChunkDuration: 5.0}
	client := NewClient(cfg, nil, testLogger(), nil)

	chunk := audio.NewChunk(make([]int16, 16000), 16000)
	if result := client.Submit(context.Background(), chunk); result != ResultFlagged {
		t.Errorf("result = %v, want flagged", result)
	}
}

func TestClientSubmitServerUnreachable(t *testing.T) {
	cfg := &config.RelayConfig{ServerAddress: "127.0.0.1:1", ChunkDuration: 5.0}
	client := NewClient(cfg, nil, testLogger(), nil)

	chunk := audio.NewChunk(make([]int16, 16000), 16000)
	if result := client.Submit(context.Background(), chunk); result != ResultUnknown {
		t.Errorf("result = %v, want unknown", result)
	}
}
