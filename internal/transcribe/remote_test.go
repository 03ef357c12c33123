package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newRemoteForTest(t *testing.T, endpoint string) *Remote {
	t.Helper()
	r, err := NewRemote(RemoteConfig{
		Endpoint:   endpoint,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}
	return r
}

func TestRemoteTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.FormValue("sample_rate") != "16000" {
			http.Error(w, "missing sample_rate", http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("file"); err != nil {
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "hello from the server"}`))
	}))
	defer srv.Close()

	r := newRemoteForTest(t, srv.URL)
	defer r.Close()

	text, err := r.Transcribe(context.Background(), make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "hello from the server" {
		t.Errorf("text = %q", text)
	}
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "transient", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"text": "eventually"}`))
	}))
	defer srv.Close()

	r := newRemoteForTest(t, srv.URL)
	defer r.Close()

	text, err := r.Transcribe(context.Background(), make([]int16, 1600), 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "eventually" {
		t.Errorf("text = %q", text)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestRemoteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad audio", http.StatusBadRequest)
	}))
	defer srv.Close()

	r := newRemoteForTest(t, srv.URL)
	defer r.Close()

	if _, err := r.Transcribe(context.Background(), make([]int16, 1600), 16000); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestRemoteRequiresEndpoint(t *testing.T) {
	if _, err := NewRemote(RemoteConfig{}); err == nil {
		t.Error("expected error for empty endpoint")
	}
}
