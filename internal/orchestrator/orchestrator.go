package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ttsdeck/internal/progress"
	"ttsdeck/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultPollInterval  = 2 * time.Second
	defaultProgressTick  = 500 * time.Millisecond
	defaultProgressGrace = 1500 * time.Millisecond
)

// ModelAPI is the subset of the remote client the orchestrator drives.
type ModelAPI interface {
	ListModels(ctx context.Context) ([]types.ModelInfo, error)
	Download(ctx context.Context, variant string) (types.CommandAck, error)
	Load(ctx context.Context, variant string) (types.CommandAck, error)
	Unload(ctx context.Context, variant string) (types.CommandAck, error)
}

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	// PollInterval between authoritative list refreshes.
	PollInterval time.Duration
	// ProgressTick is the cadence of synthetic progress advancement.
	ProgressTick time.Duration
	// ProgressGrace keeps a finished operation's 100% visible before the
	// progress value is dropped.
	ProgressGrace time.Duration
	// Seed makes overlay progress deterministic; zero seeds from the clock.
	Seed int64
	// Publisher receives lifecycle events; nil means drop them.
	Publisher EventPublisher
	// Logger for structured logging; the zero value logs nothing.
	Logger zerolog.Logger
}

// overlay is the transient optimistic layer for one variant, installed on
// command dispatch and reconciled against the next polls.
type overlay struct {
	// pending is the status guess shown until the first poll after dispatch.
	pending types.ModelStatus
	// est drives the synthetic progress; nil for unload overlays.
	est *progress.Estimator
	// confirmed is set once any poll has arrived since dispatch; from then
	// on the authoritative status wins.
	confirmed bool
	// resolvedAt is set when a poll reports a non-transitional status; the
	// overlay then survives only for the grace period.
	resolvedAt time.Time
}

// Orchestrator owns the canonical in-memory model table, applies optimistic
// transitions on command dispatch, and reconciles them against periodic
// authoritative polls.
type Orchestrator struct {
	api ModelAPI
	cfg Config
	pub EventPublisher
	log zerolog.Logger

	mu       sync.RWMutex
	table    []types.ModelInfo
	index    map[string]int
	overlays map[string]*overlay
	selected string
	lastErr  string
	polled   bool

	runCtx   context.Context
	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup

	now func() time.Time
}

// New constructs an Orchestrator around api, applying defaults for unset
// Config fields.
func New(api ModelAPI, cfg Config) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ProgressTick <= 0 {
		cfg.ProgressTick = defaultProgressTick
	}
	if cfg.ProgressGrace <= 0 {
		cfg.ProgressGrace = defaultProgressGrace
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Orchestrator{
		api:      api,
		cfg:      cfg,
		pub:      pub,
		log:      cfg.Logger,
		index:    make(map[string]int),
		overlays: make(map[string]*overlay),
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start performs the initial authoritative poll and launches the poll and
// progress-tick loops. The returned error reflects only the initial poll;
// the loops run until Stop regardless, so a temporarily unreachable server
// heals on a later poll.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.runCtx = ctx
	err := o.poll(ctx)
	o.wg.Add(2)
	go o.pollLoop()
	go o.tickLoop()
	return err
}

// Stop halts the background loops. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.done) })
	o.wg.Wait()
}

// Models returns the merged model table: authoritative records from the
// last poll with overlay status and synthetic progress layered on top.
func (o *Orchestrator) Models() []types.ModelInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	o.pruneLocked(now)
	out := make([]types.ModelInfo, len(o.table))
	for i, rec := range o.table {
		out[i] = o.mergeLocked(rec)
	}
	return out
}

// Model returns the merged record for one variant.
func (o *Orchestrator) Model(variant string) (types.ModelInfo, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pruneLocked(o.now())
	i, ok := o.index[variant]
	if !ok {
		return types.ModelInfo{}, false
	}
	return o.mergeLocked(o.table[i]), true
}

// SelectedModel returns the variant currently feeding generation, or "".
func (o *Orchestrator) SelectedModel() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.selected
}

// SelectedReady returns the selected variant and whether its record is
// ready for generation.
func (o *Orchestrator) SelectedReady() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.selected == "" {
		return "", false
	}
	i, ok := o.index[o.selected]
	if !ok {
		return o.selected, false
	}
	return o.selected, o.table[i].Status == types.StatusReady
}

// Polled reports whether at least one authoritative poll has succeeded.
func (o *Orchestrator) Polled() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.polled
}

// LastError returns the most recent user-visible failure notice, or "".
func (o *Orchestrator) LastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// DismissError clears the transient failure notice.
func (o *Orchestrator) DismissError() {
	o.mu.Lock()
	o.lastErr = ""
	o.mu.Unlock()
}

// mergeLocked overlays rec with the variant's optimistic state.
// Callers hold o.mu.
func (o *Orchestrator) mergeLocked(rec types.ModelInfo) types.ModelInfo {
	ov := o.overlays[rec.Variant]
	if ov == nil {
		return rec
	}
	if !ov.confirmed {
		rec.Status = ov.pending
	}
	switch {
	case !ov.resolvedAt.IsZero():
		p := float64(progress.CompleteValue)
		rec.DownloadProgress = &p
	case rec.Status.Transitional() && ov.est != nil:
		p := ov.est.Value()
		if rec.DownloadProgress != nil && *rec.DownloadProgress > p {
			p = *rec.DownloadProgress
		}
		rec.DownloadProgress = &p
	}
	return rec
}

// pruneLocked drops overlays whose completion grace period has elapsed.
// Callers hold o.mu.
func (o *Orchestrator) pruneLocked(now time.Time) {
	for v, ov := range o.overlays {
		if !ov.resolvedAt.IsZero() && now.Sub(ov.resolvedAt) > o.cfg.ProgressGrace {
			delete(o.overlays, v)
		}
	}
}

func (o *Orchestrator) recordLocked(variant string) (types.ModelInfo, bool) {
	i, ok := o.index[variant]
	if !ok {
		return types.ModelInfo{}, false
	}
	return o.table[i], true
}
