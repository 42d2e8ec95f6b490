// Package session drives single text-to-speech requests end to end:
// precondition checks, dispatch to the remote client, ownership of the
// produced audio resource, and timing statistics.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ttsdeck/internal/audio"
	"ttsdeck/pkg/types"
)

// Generator is the subset of the remote client the controller drives.
type Generator interface {
	Generate(ctx context.Context, req types.GenerateRequest) ([]byte, error)
	GenerateStream(ctx context.Context, req types.GenerateRequest) (<-chan []byte, error)
}

// ModelGate reports which model feeds generation and whether it is ready.
// The orchestrator implements it.
type ModelGate interface {
	SelectedReady() (string, bool)
}

// Config holds construction parameters for Controller.
type Config struct {
	// Logger for structured logging; the zero value logs nothing.
	Logger zerolog.Logger
	// Notify, when set, receives the session observable after every state
	// change. Called without internal locks held.
	Notify func(types.GenerationState)
}

// Controller runs at most one generation at a time and owns at most one
// live audio handle. A new successful generation releases the previous
// clip before its replacement is created.
type Controller struct {
	gen    Generator
	gate   ModelGate
	log    zerolog.Logger
	notify func(types.GenerationState)

	mu       sync.Mutex
	inflight bool
	status   types.SessionStatus
	text     string
	errMsg   string
	handle   *audio.Handle
	stats    *types.GenerationStats
}

// New constructs a Controller in the idle state.
func New(gen Generator, gate ModelGate, cfg Config) *Controller {
	return &Controller{
		gen:    gen,
		gate:   gate,
		log:    cfg.Logger,
		notify: cfg.Notify,
		status: types.SessionIdle,
	}
}

// Generate performs one blocking synthesis request. Preconditions are
// checked in order before any network traffic: a ready model must be
// selected, then the text must be non-empty after trimming. A call while
// another is pending is rejected with ErrGenerationInFlight.
func (c *Controller) Generate(ctx context.Context, req types.GenerateRequest) (*audio.Handle, error) {
	startedAt, err := c.begin(&req)
	if err != nil {
		return nil, err
	}
	c.emit()

	payload, genErr := c.gen.Generate(ctx, req)
	if genErr != nil {
		c.fail(genErr)
		return nil, genErr
	}
	h := c.complete(payload, time.Since(startedAt))
	return h, nil
}

// GenerateStream performs one streaming synthesis request. Chunks are
// passed to sink as they arrive (sink may be nil) and buffered so the
// completed clip is owned like a blocking generation's. Preconditions
// match Generate.
func (c *Controller) GenerateStream(ctx context.Context, req types.GenerateRequest, sink func(chunk []byte)) (*audio.Handle, error) {
	startedAt, err := c.begin(&req)
	if err != nil {
		return nil, err
	}
	c.emit()

	ch, genErr := c.gen.GenerateStream(ctx, req)
	if genErr != nil {
		c.fail(genErr)
		return nil, genErr
	}
	var buf []byte
	for chunk := range ch {
		buf = append(buf, chunk...)
		if sink != nil {
			sink(chunk)
		}
	}
	if err := ctx.Err(); err != nil {
		c.fail(err)
		return nil, err
	}
	h := c.complete(buf, time.Since(startedAt))
	return h, nil
}

// begin validates preconditions and flips the session to running.
func (c *Controller) begin(req *types.GenerateRequest) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight {
		return time.Time{}, ErrGenerationInFlight
	}
	variant, ready := c.gate.SelectedReady()
	if variant == "" || !ready {
		return time.Time{}, ErrModelRequired
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return time.Time{}, ErrEmptyText
	}
	c.inflight = true
	c.status = types.SessionRunning
	c.text = req.Text
	c.errMsg = ""
	c.stats = nil
	c.log.Debug().Str("variant", variant).Int("chars", len(req.Text)).Msg("generation dispatched")
	return time.Now(), nil
}

// fail records a session failure. The failed session holds no audio; any
// previous clip is released so no resource outlives its session on the
// error path either.
func (c *Controller) fail(err error) {
	c.mu.Lock()
	c.inflight = false
	c.status = types.SessionError
	c.errMsg = err.Error()
	old := c.handle
	c.handle = nil
	c.mu.Unlock()
	if old != nil {
		old.Release()
	}
	c.log.Warn().Err(err).Msg("generation failed")
	c.emit()
}

// complete releases the superseded clip, takes ownership of the new one,
// and derives timing statistics.
func (c *Controller) complete(payload []byte, elapsed time.Duration) *audio.Handle {
	c.mu.Lock()
	old := c.handle
	c.handle = nil
	c.mu.Unlock()
	// the previous resource is gone before its replacement exists
	if old != nil {
		old.Release()
	}

	h := audio.NewHandle(payload)
	stats := &types.GenerationStats{
		GenerationSecs: elapsed.Seconds(),
		AudioBytes:     len(payload),
	}
	if d, err := h.Duration(); err == nil {
		stats.DurationSecs = d.Seconds()
		if stats.GenerationSecs > 0 {
			stats.RealtimeRatio = stats.DurationSecs / stats.GenerationSecs
		}
	}

	c.mu.Lock()
	c.inflight = false
	c.status = types.SessionComplete
	c.handle = h
	c.stats = stats
	c.mu.Unlock()
	c.log.Info().
		Float64("generation_secs", stats.GenerationSecs).
		Float64("duration_secs", stats.DurationSecs).
		Int("bytes", stats.AudioBytes).
		Msg("generation complete")
	c.emit()
	return h
}

// Audio returns the live handle, or nil when none is held.
func (c *Controller) Audio() *audio.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// State returns the session observable for the UI.
func (c *Controller) State() types.GenerationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() types.GenerationState {
	st := types.GenerationState{
		Status:     c.status,
		Text:       c.text,
		Error:      c.errMsg,
		AudioReady: c.handle != nil && !c.handle.Released(),
	}
	if c.stats != nil {
		statsCopy := *c.stats
		st.Stats = &statsCopy
	}
	return st
}

// Reset releases any held audio and returns the session to idle. Used on
// teardown and when the UI discards the last result.
func (c *Controller) Reset() {
	c.mu.Lock()
	old := c.handle
	c.handle = nil
	c.status = types.SessionIdle
	c.text = ""
	c.errMsg = ""
	c.stats = nil
	c.mu.Unlock()
	if old != nil {
		old.Release()
	}
	c.emit()
}

func (c *Controller) emit() {
	if c.notify == nil {
		return
	}
	c.mu.Lock()
	st := c.stateLocked()
	c.mu.Unlock()
	c.notify(st)
}
