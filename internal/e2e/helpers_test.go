package e2e

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ttsdeck/pkg/types"
)

// speechServer is a minimal in-memory stand-in for the remote synthesis
// server. Commands are acknowledged immediately and settle to their terminal
// state, so the next poll sees the authoritative result.
type speechServer struct {
	mu     sync.Mutex
	models map[string]*types.ModelInfo
	order  []string

	// genCalls counts POST /tts/generate requests.
	genCalls int
	// rejectGenerate, when set, makes generation fail with this message.
	rejectGenerate string
}

func newSpeechServer(variants ...string) *speechServer {
	s := &speechServer{models: map[string]*types.ModelInfo{}}
	for _, v := range variants {
		s.models[v] = &types.ModelInfo{Variant: v, Status: types.StatusNotDownloaded}
		s.order = append(s.order, v)
	}
	return s
}

func (s *speechServer) start(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /models", s.handleList)
	mux.HandleFunc("GET /models/{variant}", s.handleGet)
	mux.HandleFunc("POST /models/{variant}/{op}", s.handleCommand)
	mux.HandleFunc("POST /tts/generate", s.handleGenerate)
	mux.HandleFunc("POST /tts/stream", s.handleGenerate)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (s *speechServer) handleList(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := types.ModelsResponse{}
	for _, v := range s.order {
		resp.Models = append(resp.Models, *s.models[v])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *speechServer) handleGet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.models[r.PathValue("variant")]
	var out types.ModelInfo
	if ok {
		out = *rec
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown model")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *speechServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	variant, op := r.PathValue("variant"), r.PathValue("op")
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.models[variant]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown model")
		return
	}
	switch op {
	case "download":
		rec.Status = types.StatusDownloaded
		rec.LocalPath = "/models/" + variant + ".bin"
	case "load":
		if rec.Status != types.StatusDownloaded {
			writeError(w, http.StatusConflict, "model not downloaded")
			return
		}
		rec.Status = types.StatusReady
	case "unload":
		if rec.LocalPath != "" {
			rec.Status = types.StatusDownloaded
		} else {
			rec.Status = types.StatusNotDownloaded
		}
	default:
		writeError(w, http.StatusNotFound, "unknown operation")
		return
	}
	writeJSON(w, http.StatusOK, types.CommandAck{Status: "accepted"})
}

func (s *speechServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	s.genCalls++
	reject := s.rejectGenerate
	s.mu.Unlock()
	if reject != "" {
		writeJSON(w, http.StatusInternalServerError,
			types.ErrorEnvelope{Error: types.ErrorDetail{Message: reject}})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest,
			types.ErrorEnvelope{Error: types.ErrorDetail{Message: "text required"}})
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	_, _ = w.Write(wavClip(8000, 1))
}

// mark transitions a model server-side, as if a background job advanced it.
func (s *speechServer) mark(variant string, status types.ModelStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.models[variant]; ok {
		rec.Status = status
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, types.ErrorEnvelope{Error: types.ErrorDetail{Message: msg}})
}

// wavClip builds a 16-bit mono PCM clip of the given length in seconds.
func wavClip(sampleRate, seconds int) []byte {
	dataLen := sampleRate * 2 * seconds
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}
