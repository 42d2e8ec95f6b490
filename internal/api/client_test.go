package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ttsdeck/pkg/types"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL}), srv
}

func TestListModels(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[
			{"variant":"tiny","status":"not_downloaded"},
			{"variant":"large","status":"ready","local_path":"/models/large","size_bytes":42}
		]}`))
	})

	models, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models got %d", len(models))
	}
	if models[0].Variant != "tiny" || models[0].Status != types.StatusNotDownloaded {
		t.Fatalf("unexpected first model: %+v", models[0])
	}
	if models[1].LocalPath != "/models/large" || *models[1].SizeBytes != 42 {
		t.Fatalf("unexpected second model: %+v", models[1])
	}
}

func TestListModelsUnknownStatusIsProtocolError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[{"variant":"tiny","status":"warming"}]}`))
	})
	_, err := c.ListModels(context.Background())
	if !IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestListModelsMalformedBodyIsProtocolError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})
	_, err := c.ListModels(context.Background())
	if !IsProtocol(err) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := New(Config{BaseURL: srv.URL})
	srv.Close()

	if _, err := c.ListModels(context.Background()); !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if _, err := c.Download(context.Background(), "tiny"); !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestCommandEndpoints(t *testing.T) {
	var gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		_, _ = w.Write([]byte(`{"status":"accepted","message":"download started"}`))
	})

	ctx := context.Background()
	cases := []struct {
		name string
		call func() (types.CommandAck, error)
		want string
	}{
		{"download", func() (types.CommandAck, error) { return c.Download(ctx, "tiny") }, "POST /models/tiny/download"},
		{"load", func() (types.CommandAck, error) { return c.Load(ctx, "tiny") }, "POST /models/tiny/load"},
		{"unload", func() (types.CommandAck, error) { return c.Unload(ctx, "tiny") }, "POST /models/tiny/unload"},
	}
	for _, tc := range cases {
		ack, err := tc.call()
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if ack.Status != "accepted" {
			t.Fatalf("%s: unexpected ack %+v", tc.name, ack)
		}
		if gotPath != tc.want {
			t.Fatalf("%s: request was %q want %q", tc.name, gotPath, tc.want)
		}
	}
}

func TestServerRejectionEnvelope(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"OOM"}}`))
	})
	_, err := c.Generate(context.Background(), types.GenerateRequest{Text: "hi"})
	if !IsServerRejected(err) {
		t.Fatalf("expected server rejection, got %v", err)
	}
	var apiErr *Error
	if !asAPIError(err, &apiErr) || apiErr.Message != "OOM" || apiErr.HTTPStatus != 500 {
		t.Fatalf("unexpected error detail: %+v", apiErr)
	}
}

func TestServerRejectionMalformedEnvelopeFallsBack(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`<html>boom</html>`))
	})
	_, err := c.Generate(context.Background(), types.GenerateRequest{Text: "hi"})
	if !IsServerRejected(err) {
		t.Fatalf("expected server rejection, got %v", err)
	}
	var apiErr *Error
	if !asAPIError(err, &apiErr) || apiErr.Message != "server returned HTTP 500" {
		t.Fatalf("expected generic fallback message, got %+v", apiErr)
	}
}

func TestGenerateForcesWavFormat(t *testing.T) {
	var got types.GenerateRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte("RIFFaudio"))
	})

	audio, err := c.Generate(context.Background(), types.GenerateRequest{Text: "hello", Format: "mp3"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got.Format != "wav" {
		t.Fatalf("expected forced wav format, got %q", got.Format)
	}
	if string(audio) != "RIFFaudio" {
		t.Fatalf("unexpected audio payload %q", audio)
	}
}

func TestGenerateStreamChunks(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var got types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got.Format != "pcm" {
			t.Errorf("stream format should be caller's, got %q", got.Format)
		}
		fl, _ := w.(http.Flusher)
		for i := 0; i < 3; i++ {
			_, _ = w.Write([]byte("chunk"))
			if fl != nil {
				fl.Flush()
			}
		}
	})

	ch, err := c.GenerateStream(context.Background(), types.GenerateRequest{Text: "hello", Format: "pcm"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	var total []byte
	for chunk := range ch {
		total = append(total, chunk...)
	}
	if string(total) != "chunkchunkchunk" {
		t.Fatalf("unexpected streamed payload %q", total)
	}
}

func TestGenerateStreamRejection(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":{"message":"no model loaded"}}`))
	})
	_, err := c.GenerateStream(context.Background(), types.GenerateRequest{Text: "hello"})
	if !IsServerRejected(err) {
		t.Fatalf("expected server rejection, got %v", err)
	}
}

func asAPIError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}
