// Package uibridge exposes the orchestrator's merged state and the
// generation session to the bundled UI over a loopback HTTP surface.
package uibridge

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ttsdeck/internal/api"
	"ttsdeck/internal/audio"
	"ttsdeck/internal/orchestrator"
	"ttsdeck/internal/session"
	"ttsdeck/pkg/types"
)

// ModelService defines the orchestrator methods required by the bridge.
type ModelService interface {
	Models() []types.ModelInfo
	SelectedModel() string
	LastError() string
	DismissError()
	Polled() bool
	Refresh(ctx context.Context) error
	Download(ctx context.Context, variant string) error
	Load(ctx context.Context, variant string) error
	Unload(ctx context.Context, variant string) error
	Select(variant string) error
}

// GenerationService defines the session-controller methods required by the
// bridge.
type GenerationService interface {
	Generate(ctx context.Context, req types.GenerateRequest) (*audio.Handle, error)
	State() types.GenerationState
	Audio() *audio.Handle
	Reset()
}

// NewMux builds the bridge router over the two services.
func NewMux(svc ModelService, gen GenerationService) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}
	r.Use(MetricsMiddleware)

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, stateResponse(svc, gen))
	})

	r.Post("/errors/dismiss", func(w http.ResponseWriter, r *http.Request) {
		svc.DismissError()
		writeJSON(w, stateResponse(svc, gen))
	})

	r.Post("/models/refresh", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Refresh(ctx); err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, stateResponse(svc, gen))
	})

	r.Post("/models/{variant}/{op}", func(w http.ResponseWriter, r *http.Request) {
		variant := chi.URLParam(r, "variant")
		op := chi.URLParam(r, "op")
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		var err error
		switch op {
		case "download":
			err = svc.Download(ctx, variant)
		case "load":
			err = svc.Load(ctx, variant)
		case "unload":
			err = svc.Unload(ctx, variant)
		case "select":
			err = svc.Select(variant)
		default:
			writeJSONError(w, http.StatusNotFound, "unknown model operation: "+op)
			return
		}
		if err != nil {
			writeCommandError(w, err)
			return
		}
		writeJSON(w, stateResponse(svc, gen))
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var req types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		start := time.Now()
		_, err := gen.Generate(ctx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeGenerateError(w, err)
			return
		}
		ObserveGeneration(time.Since(start))
		writeJSON(w, gen.State())
	})

	r.Get("/audio", func(w http.ResponseWriter, r *http.Request) {
		h := gen.Audio()
		if h == nil {
			writeJSONError(w, http.StatusNotFound, "no audio available")
			return
		}
		b, err := h.Bytes()
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "no audio available")
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(b)
	})

	r.Post("/session/reset", func(w http.ResponseWriter, r *http.Request) {
		gen.Reset()
		writeJSON(w, gen.State())
	})

	r.Get("/ws", stateStreamHandler(svc, gen))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Polled() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("waiting for first poll"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

func stateResponse(svc ModelService, gen GenerationService) types.StateResponse {
	return types.StateResponse{
		Models:        svc.Models(),
		SelectedModel: svc.SelectedModel(),
		Generation:    gen.State(),
		LastError:     svc.LastError(),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// writeCommandError maps orchestrator and client failures to HTTP codes.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case orchestrator.IsVariantNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case orchestrator.IsModelNotReady(err):
		writeJSONError(w, http.StatusConflict, err.Error())
	case api.IsTransport(err), api.IsProtocol(err), api.IsServerRejected(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case err == session.ErrGenerationInFlight:
		writeJSONError(w, http.StatusConflict, err.Error())
	case err == session.ErrModelRequired, err == session.ErrEmptyText:
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case api.IsTransport(err), api.IsProtocol(err), api.IsServerRejected(err):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
