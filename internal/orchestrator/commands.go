package orchestrator

import (
	"context"

	"ttsdeck/internal/progress"
	"ttsdeck/pkg/types"
)

// Download dispatches a download command for variant. The local status
// flips to downloading before the server acknowledges, so the UI reflects
// intent without waiting on network latency. If the acknowledgement call
// itself fails the overlay is rolled back, the error is surfaced, and a
// reconciling poll is forced so the displayed state cannot stick in a
// transitional status.
func (o *Orchestrator) Download(ctx context.Context, variant string) error {
	return o.dispatch(ctx, variant, "download", o.api.Download)
}

// Load dispatches a load command for variant with the same optimistic
// contract as Download.
func (o *Orchestrator) Load(ctx context.Context, variant string) error {
	return o.dispatch(ctx, variant, "load", o.api.Load)
}

// Unload dispatches an unload command. The optimistic guess is the state
// the server's unload lands in: downloaded when local weights exist,
// otherwise not_downloaded. Unloading a model that is not loaded is a
// server-side no-op; the next poll reconciles either way.
func (o *Orchestrator) Unload(ctx context.Context, variant string) error {
	return o.dispatch(ctx, variant, "unload", o.api.Unload)
}

type commandFunc func(ctx context.Context, variant string) (types.CommandAck, error)

func (o *Orchestrator) dispatch(ctx context.Context, variant, op string, call commandFunc) error {
	o.mu.Lock()
	rec, ok := o.recordLocked(variant)
	if !ok {
		o.mu.Unlock()
		return ErrVariantNotFound(variant)
	}
	ov := o.newOverlayLocked(rec, op)
	o.overlays[variant] = ov
	o.mu.Unlock()

	o.pub.Publish(Event{Name: EventCommandDispatched, Variant: variant, Fields: map[string]any{"op": op}})
	o.log.Debug().Str("variant", variant).Str("op", op).Msg("command dispatched")

	ack, err := call(ctx, variant)
	if err != nil {
		o.mu.Lock()
		// Roll back only our own overlay; a newer command may have
		// replaced it while the acknowledgement was in flight.
		if o.overlays[variant] == ov {
			delete(o.overlays, variant)
		}
		o.lastErr = err.Error()
		o.mu.Unlock()
		o.pub.Publish(Event{Name: EventCommandFailed, Variant: variant, Fields: map[string]any{"op": op, "error": err.Error()}})
		o.log.Warn().Str("variant", variant).Str("op", op).Err(err).Msg("command failed")
		// Reconcile immediately rather than trusting the optimistic guess.
		_ = o.Refresh(ctx)
		return err
	}
	o.log.Debug().Str("variant", variant).Str("op", op).Str("ack", ack.Status).Msg("command accepted")
	return nil
}

// newOverlayLocked builds the optimistic overlay for op against the
// authoritative record rec. Callers hold o.mu.
func (o *Orchestrator) newOverlayLocked(rec types.ModelInfo, op string) *overlay {
	switch op {
	case "download":
		return &overlay{pending: types.StatusDownloading, est: progress.NewEstimator(o.cfg.Seed)}
	case "load":
		return &overlay{pending: types.StatusLoading, est: progress.NewEstimator(o.cfg.Seed)}
	default: // unload
		pending := types.StatusNotDownloaded
		if rec.LocalPath != "" {
			pending = types.StatusDownloaded
		}
		return &overlay{pending: pending}
	}
}

// Select marks variant as the model feeding generation. The record must
// currently be ready; the selection auto-clears if a later poll shows the
// model leaving the ready state.
func (o *Orchestrator) Select(variant string) error {
	o.mu.Lock()
	rec, ok := o.recordLocked(variant)
	if !ok {
		o.mu.Unlock()
		return ErrVariantNotFound(variant)
	}
	if rec.Status != types.StatusReady {
		o.mu.Unlock()
		return ErrModelNotReady(variant)
	}
	o.selected = variant
	o.mu.Unlock()
	o.pub.Publish(Event{Name: EventModelSelected, Variant: variant})
	return nil
}
