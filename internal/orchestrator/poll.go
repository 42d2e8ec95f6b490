package orchestrator

import (
	"context"
	"time"

	"ttsdeck/pkg/types"
)

// pollLoop refreshes the model table on a fixed cadence, independent of
// any in-flight command, for the lifetime of the orchestrator.
func (o *Orchestrator) pollLoop() {
	defer o.wg.Done()
	t := time.NewTicker(o.cfg.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-o.runCtx.Done():
			return
		case <-t.C:
			_ = o.poll(o.runCtx)
		}
	}
}

// tickLoop advances the synthetic progress of every unresolved overlay and
// lazily drops resolved overlays whose grace period has elapsed.
func (o *Orchestrator) tickLoop() {
	defer o.wg.Done()
	t := time.NewTicker(o.cfg.ProgressTick)
	defer t.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-o.runCtx.Done():
			return
		case <-t.C:
			o.mu.Lock()
			for _, ov := range o.overlays {
				if ov.resolvedAt.IsZero() && ov.est != nil {
					ov.est.Tick()
				}
			}
			o.pruneLocked(o.now())
			o.mu.Unlock()
		}
	}
}

// Refresh forces an immediate authoritative poll. Used by the UI and after
// failed command acknowledgements.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return o.poll(ctx)
}

func (o *Orchestrator) poll(ctx context.Context) error {
	models, err := o.api.ListModels(ctx)
	if err != nil {
		o.mu.Lock()
		o.lastErr = err.Error()
		o.mu.Unlock()
		o.pub.Publish(Event{Name: EventPollFailed, Fields: map[string]any{"error": err.Error()}})
		o.log.Warn().Err(err).Msg("poll failed")
		return err
	}
	o.mu.Lock()
	o.applyPollLocked(models)
	o.mu.Unlock()
	o.pub.Publish(Event{Name: EventPollOK, Fields: map[string]any{"models": len(models)}})
	return nil
}

// applyPollLocked installs the authoritative snapshot and reconciles every
// overlay against it. The poll always wins: any non-transitional status
// resolves the variant's overlay, even when it contradicts the command's
// optimistic guess. Callers hold o.mu.
func (o *Orchestrator) applyPollLocked(models []types.ModelInfo) {
	now := o.now()
	o.table = make([]types.ModelInfo, len(models))
	copy(o.table, models)
	o.index = make(map[string]int, len(models))
	for i, m := range models {
		o.index[m.Variant] = i
	}

	for v, ov := range o.overlays {
		rec, ok := o.recordLocked(v)
		if !ok {
			delete(o.overlays, v)
			continue
		}
		if !ov.resolvedAt.IsZero() {
			continue // already completed, waiting out the grace period
		}
		ov.confirmed = true
		if rec.Status.Transitional() {
			continue // still pending; synthetic progress keeps running
		}
		switch rec.Status {
		case types.StatusDownloaded, types.StatusReady:
			if ov.est != nil {
				ov.est.Complete()
				ov.resolvedAt = now
			} else {
				delete(o.overlays, v)
			}
		default:
			// Error, not_downloaded, or any other terminal report:
			// drop the overlay outright so the table shows ground truth.
			delete(o.overlays, v)
		}
		o.pub.Publish(Event{Name: EventOverlayResolved, Variant: v, Fields: map[string]any{"status": string(rec.Status)}})
	}

	if o.selected != "" {
		rec, ok := o.recordLocked(o.selected)
		if !ok || rec.Status != types.StatusReady {
			cleared := o.selected
			o.selected = ""
			o.pub.Publish(Event{Name: EventSelectionCleared, Variant: cleared})
		}
	}
	o.pruneLocked(now)
	o.polled = true
}
