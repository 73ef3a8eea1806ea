package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/notewell/miccap/internal/audio"
	"github.com/notewell/miccap/internal/config"
	"github.com/notewell/miccap/internal/service"
	"github.com/notewell/miccap/internal/session"
)

type stubDevice struct {
	mu        sync.Mutex
	buffering bool
	buf       []byte
}

func (d *stubDevice) StartBuffering() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffering = true
	return nil
}

func (d *stubDevice) StopBuffering() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buffering = false
	return nil
}

func (d *stubDevice) Flush() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.buf
	d.buf = nil
	return out
}

func (d *stubDevice) SampleAmplitude() []float64 { return nil }
func (d *stubDevice) OnDisconnect(func(error))   {}
func (d *stubDevice) SampleRate() int            { return 16000 }
func (d *stubDevice) Channels() int              { return 1 }
func (d *stubDevice) Release() error             { return nil }

type stubBackend struct {
	acquireErr error
}

func (b *stubBackend) Acquire(config.AudioConfig) (audio.Device, error) {
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	return &stubDevice{}, nil
}

func (b *stubBackend) ListSources() ([]string, error) {
	return []string{"stub microphone"}, nil
}

func (b *stubBackend) Type() audio.BackendType { return audio.BackendType("stub") }

func (b *stubBackend) Close() error { return nil }

func newTestServer(t *testing.T, backend *stubBackend) (*Server, *service.Service) {
	t.Helper()

	cfg := config.Default()
	cfg.Capture.OutputDir = t.TempDir()
	cfg.Capture.ChunkDuration = time.Hour
	cfg.Capture.LevelInterval = 5 * time.Millisecond

	svc := service.New(cfg, backend, nil, nil)
	t.Cleanup(func() { svc.Close() })
	return New(cfg, svc), svc
}

func doRequest(t *testing.T, handler http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeOperation(t *testing.T, rec *httptest.ResponseRecorder) OperationResponse {
	t.Helper()
	var resp OperationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return resp
}

func TestServer_Lifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	h := srv.Handler()

	steps := []struct {
		path string
		want session.State
	}{
		{"/start", session.StateRecording},
		{"/pause", session.StatePaused},
		{"/resume", session.StateRecording},
		{"/stop", session.StateStopped},
	}
	for _, step := range steps {
		rec := doRequest(t, h, http.MethodPost, step.path)
		if rec.Code != http.StatusOK {
			t.Fatalf("POST %s status = %d, want 200 (body %s)", step.path, rec.Code, rec.Body)
		}
		resp := decodeOperation(t, rec)
		if !resp.Success || resp.State != step.want {
			t.Errorf("POST %s response = %+v, want success with state %s", step.path, resp, step.want)
		}
	}
}

func TestServer_StatusSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	h := srv.Handler()

	rec := doRequest(t, h, http.MethodGet, "/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /status status = %d, want 200", rec.Code)
	}

	var snap session.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.State != session.StateIdle {
		t.Errorf("snapshot state = %s, want %s", snap.State, session.StateIdle)
	}

	doRequest(t, h, http.MethodPost, "/start")
	rec = doRequest(t, h, http.MethodGet, "/status")
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.State != session.StateRecording || snap.SessionID == "" {
		t.Errorf("snapshot = %+v, want recording with a session ID", snap)
	}
}

func TestServer_InvalidTransitionConflicts(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	h := srv.Handler()

	for _, path := range []string{"/pause", "/resume", "/stop"} {
		rec := doRequest(t, h, http.MethodPost, path)
		if rec.Code != http.StatusConflict {
			t.Errorf("POST %s from idle status = %d, want 409", path, rec.Code)
		}
		if resp := decodeOperation(t, rec); resp.Success {
			t.Errorf("POST %s response marked success on rejected transition", path)
		}
	}
}

func TestServer_AcquisitionFailure(t *testing.T) {
	backend := &stubBackend{
		acquireErr: audio.NewCaptureError(audio.KindPermissionDenied, errors.New("microphone access denied")),
	}
	srv, _ := newTestServer(t, backend)

	rec := doRequest(t, srv.Handler(), http.MethodPost, "/start")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("POST /start status = %d, want 500", rec.Code)
	}
	resp := decodeOperation(t, rec)
	if resp.Kind != string(audio.KindPermissionDenied) {
		t.Errorf("response kind = %q, want %q", resp.Kind, audio.KindPermissionDenied)
	}
}

func TestServer_Sources(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/sources")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /sources status = %d, want 200", rec.Code)
	}
	var resp SourcesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding sources: %v", err)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "stub microphone" {
		t.Errorf("sources = %v, want [stub microphone]", resp.Sources)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})
	h := srv.Handler()

	if rec := doRequest(t, h, http.MethodGet, "/start"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /start status = %d, want 405", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodPost, "/status"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /status status = %d, want 405", rec.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubBackend{})

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /metrics status = %d, want 200", rec.Code)
	}
}
