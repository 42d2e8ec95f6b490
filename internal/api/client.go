package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ttsdeck/pkg/types"
)

// maxErrorBody bounds how much of an error response body is read when
// decoding the server's error envelope.
const maxErrorBody = 64 << 10

// Client is a thin typed wrapper over the speech server's REST API.
// All methods fail with *Error.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds construction parameters for Client.
type Config struct {
	// BaseURL of the server, e.g. "http://127.0.0.1:8321".
	BaseURL string
	// Timeout for blocking calls. Zero means no client-side timeout;
	// streaming calls never apply it.
	Timeout time.Duration
	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// New creates a Client for the server at cfg.BaseURL.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
	}
}

// ListModels returns the server's authoritative snapshot of all model
// variants, in server order.
func (c *Client) ListModels(ctx context.Context) ([]types.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, transportErr(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	var out types.ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, protocolErr("decode models list: %v", err)
	}
	for _, m := range out.Models {
		if m.Variant == "" || !m.Status.Valid() {
			return nil, protocolErr("unexpected model entry: variant=%q status=%q", m.Variant, m.Status)
		}
	}
	return out.Models, nil
}

// GetModel fetches a single variant's record.
func (c *Client) GetModel(ctx context.Context, variant string) (types.ModelInfo, error) {
	var out types.ModelInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models/"+variant, nil)
	if err != nil {
		return out, transportErr(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return out, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, protocolErr("decode model info: %v", err)
	}
	if !out.Status.Valid() {
		return out, protocolErr("unexpected model status %q", out.Status)
	}
	return out, nil
}

// Download asks the server to start fetching the variant's weights.
// A successful ack means the command was accepted, not that the download
// finished; callers observe completion through ListModels.
func (c *Client) Download(ctx context.Context, variant string) (types.CommandAck, error) {
	return c.command(ctx, variant, "download")
}

// Load asks the server to load downloaded weights into memory.
// Same ack semantics as Download.
func (c *Client) Load(ctx context.Context, variant string) (types.CommandAck, error) {
	return c.command(ctx, variant, "load")
}

// Unload asks the server to release the variant's in-memory weights.
// Same ack semantics as Download.
func (c *Client) Unload(ctx context.Context, variant string) (types.CommandAck, error) {
	return c.command(ctx, variant, "unload")
}

func (c *Client) command(ctx context.Context, variant, op string) (types.CommandAck, error) {
	var ack types.CommandAck
	url := fmt.Sprintf("%s/models/%s/%s", c.baseURL, variant, op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return ack, transportErr(err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ack, transportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ack, decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return ack, protocolErr("decode %s ack: %v", op, err)
	}
	return ack, nil
}

// Generate performs a blocking text-to-speech round trip and returns the
// raw audio payload. The output format is forced to wav so the returned
// bytes are always an independently decodable container.
func (c *Client) Generate(ctx context.Context, genReq types.GenerateRequest) ([]byte, error) {
	genReq.Format = "wav"
	resp, err := c.postJSON(ctx, "/tts/generate", genReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr(err)
	}
	return audio, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, protocolErr("encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, transportErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	return resp, nil
}

// decodeError turns a non-2xx response into a ServerRejected error. The
// server's {error:{message}} envelope is used when present; a missing or
// malformed envelope falls back to a generic message rather than failing
// the decode.
func decodeError(resp *http.Response) *Error {
	msg := fmt.Sprintf("server returned HTTP %d", resp.StatusCode)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(body) > 0 {
		var env types.ErrorEnvelope
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
	}
	return &Error{Kind: KindServerRejected, Message: msg, HTTPStatus: resp.StatusCode}
}
