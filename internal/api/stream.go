package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"ttsdeck/pkg/types"
)

// streamChunkSize is the read granularity for streamed audio.
const streamChunkSize = 4096

// GenerateStream starts a streaming synthesis request and returns a channel
// of audio chunks. The channel is closed when the stream ends or the
// context is canceled; the format field is left to the caller. Chunks must
// be consumed promptly or the producer goroutine blocks on the channel.
func (c *Client) GenerateStream(ctx context.Context, genReq types.GenerateRequest) (<-chan []byte, error) {
	payload, err := json.Marshal(genReq)
	if err != nil {
		return nil, protocolErr("encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/stream", bytes.NewReader(payload))
	if err != nil {
		return nil, transportErr(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.streamClient().Do(req)
	if err != nil {
		return nil, transportErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		buf := make([]byte, streamChunkSize)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return ch, nil
}

// streamClient returns an http.Client without a response deadline so long
// streams are not cut off by the blocking-call timeout.
func (c *Client) streamClient() *http.Client {
	if c.httpClient.Timeout == 0 {
		return c.httpClient
	}
	return &http.Client{Transport: c.httpClient.Transport}
}
