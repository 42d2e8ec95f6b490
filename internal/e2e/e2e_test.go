package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ttsdeck/internal/api"
	"ttsdeck/internal/orchestrator"
	"ttsdeck/internal/session"
	"ttsdeck/internal/uibridge"
	"ttsdeck/pkg/types"
)

// harness wires the full client stack against an in-memory speech server:
// api client, orchestrator, session controller and the uibridge HTTP surface.
type harness struct {
	speech *speechServer
	orch   *orchestrator.Orchestrator
	bridge *httptest.Server
}

func newHarness(t *testing.T, variants ...string) *harness {
	t.Helper()
	speech := newSpeechServer(variants...)
	upstream := speech.start(t)

	client := api.New(api.Config{BaseURL: upstream.URL, Timeout: 5 * time.Second})
	orch := orchestrator.New(client, orchestrator.Config{
		// Long timers: tests drive reconciliation through /models/refresh.
		PollInterval:  time.Hour,
		ProgressTick:  time.Hour,
		ProgressGrace: time.Hour,
		Seed:          1,
	})
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("orchestrator start: %v", err)
	}
	t.Cleanup(orch.Stop)

	ctrl := session.New(client, orch, session.Config{})
	bridge := httptest.NewServer(uibridge.NewMux(orch, ctrl))
	t.Cleanup(bridge.Close)

	return &harness{speech: speech, orch: orch, bridge: bridge}
}

func (h *harness) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(h.bridge.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func (h *harness) post(t *testing.T, path string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(h.bridge.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func (h *harness) state(t *testing.T) types.StateResponse {
	t.Helper()
	_, body := h.get(t, "/state")
	var st types.StateResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("state json: %v body=%s", err, string(body))
	}
	return st
}

func (h *harness) model(t *testing.T, st types.StateResponse, variant string) types.ModelInfo {
	t.Helper()
	for _, m := range st.Models {
		if m.Variant == variant {
			return m
		}
	}
	t.Fatalf("variant %s missing from state %+v", variant, st)
	return types.ModelInfo{}
}

func TestLifecycleFlow(t *testing.T) {
	h := newHarness(t, "kokoro", "orpheus")

	st := h.state(t)
	if len(st.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(st.Models))
	}
	if m := h.model(t, st, "kokoro"); m.Status != types.StatusNotDownloaded {
		t.Fatalf("initial status %s", m.Status)
	}

	// Download is acknowledged and shown optimistically before any poll.
	resp, body := h.post(t, "/models/kokoro/download", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download %d %s", resp.StatusCode, string(body))
	}
	var after types.StateResponse
	if err := json.Unmarshal(body, &after); err != nil {
		t.Fatalf("download body: %v", err)
	}
	if m := h.model(t, after, "kokoro"); m.Status != types.StatusDownloading {
		t.Fatalf("expected optimistic downloading, got %s", m.Status)
	}

	// A refresh brings the authoritative terminal state.
	h.post(t, "/models/refresh", nil)
	st = h.state(t)
	m := h.model(t, st, "kokoro")
	if m.Status != types.StatusDownloaded {
		t.Fatalf("after refresh: %s", m.Status)
	}
	if m.DownloadProgress == nil || *m.DownloadProgress != 100 {
		t.Fatalf("expected snapped progress 100, got %v", m.DownloadProgress)
	}

	// Load, refresh, select.
	h.post(t, "/models/kokoro/load", nil)
	h.post(t, "/models/refresh", nil)
	if m := h.model(t, h.state(t), "kokoro"); m.Status != types.StatusReady {
		t.Fatalf("after load: %s", m.Status)
	}
	if resp, body := h.post(t, "/models/kokoro/select", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("select %d %s", resp.StatusCode, string(body))
	}
	if st := h.state(t); st.SelectedModel != "kokoro" {
		t.Fatalf("selected %q", st.SelectedModel)
	}

	// Generate and fetch the clip.
	resp, body = h.post(t, "/generate", []byte(`{"text":"good morning"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate %d %s", resp.StatusCode, string(body))
	}
	var gen types.GenerationState
	if err := json.Unmarshal(body, &gen); err != nil {
		t.Fatalf("generate body: %v", err)
	}
	if gen.Status != types.SessionComplete || !gen.AudioReady {
		t.Fatalf("generation state %+v", gen)
	}
	if gen.Stats == nil || gen.Stats.DurationSecs != 1 {
		t.Fatalf("stats %+v", gen.Stats)
	}

	resp, body = h.get(t, "/audio")
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(body, []byte("RIFF")) {
		t.Fatalf("audio %d (%d bytes)", resp.StatusCode, len(body))
	}
}

func TestSelectionClearsWhenModelLeavesReady(t *testing.T) {
	h := newHarness(t, "kokoro")
	h.post(t, "/models/kokoro/download", nil)
	h.post(t, "/models/refresh", nil)
	h.post(t, "/models/kokoro/load", nil)
	h.post(t, "/models/refresh", nil)
	h.post(t, "/models/kokoro/select", nil)
	if st := h.state(t); st.SelectedModel != "kokoro" {
		t.Fatalf("selected %q", st.SelectedModel)
	}

	// The server unloads behind our back; the next poll drops the selection.
	h.speech.mark("kokoro", types.StatusDownloaded)
	h.post(t, "/models/refresh", nil)
	if st := h.state(t); st.SelectedModel != "" {
		t.Fatalf("selection should clear, still %q", st.SelectedModel)
	}
}

func TestGenerateRejectionSurfaced(t *testing.T) {
	h := newHarness(t, "kokoro")
	h.post(t, "/models/kokoro/download", nil)
	h.post(t, "/models/refresh", nil)
	h.post(t, "/models/kokoro/load", nil)
	h.post(t, "/models/refresh", nil)
	h.post(t, "/models/kokoro/select", nil)

	h.speech.rejectGenerate = "OOM on GPU"
	resp, body := h.post(t, "/generate", []byte(`{"text":"hello"}`))
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d %s", resp.StatusCode, string(body))
	}
	if !strings.Contains(string(body), "OOM on GPU") {
		t.Fatalf("server message lost: %s", string(body))
	}
	if st := h.state(t); st.Generation.Status != types.SessionError {
		t.Fatalf("generation status %s", st.Generation.Status)
	}
}

func TestGenerateWithoutSelectionRejectedLocally(t *testing.T) {
	h := newHarness(t, "kokoro")
	resp, _ := h.post(t, "/generate", []byte(`{"text":"hello"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	h.speech.mu.Lock()
	calls := h.speech.genCalls
	h.speech.mu.Unlock()
	if calls != 0 {
		t.Fatalf("no network call expected, saw %d", calls)
	}
}
