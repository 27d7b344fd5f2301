package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// TriggerSweeper removes event wirings attached to a function beyond
// those the record tracks, so function deletion never leaves orphaned
// mappings behind.
type TriggerSweeper interface {
	SweepTriggers(ctx context.Context, functionName string) error
}

// teardownPhases orders destruction by kind: dependents before their
// dependencies, buckets last because emptying them is the slowest and
// most failure-prone step.
var teardownPhases = []ir.Kind{
	ir.KindGateway,
	ir.KindTrigger,
	ir.KindFunction,
	ir.KindTable,
	ir.KindTopic,
	ir.KindStorage,
}

// Teardown deletes every recorded resource and clears the record.
type Teardown struct {
	registry *provider.Registry
	store    Store
	callback StepCallback
	retry    *RetryPolicy // nil means DefaultRetryPolicy
}

func NewTeardown(registry *provider.Registry, store Store) *Teardown {
	return &Teardown{registry: registry, store: store}
}

// OnStep registers a progress callback.
func (t *Teardown) OnStep(cb StepCallback) {
	t.callback = cb
}

func (t *Teardown) emit(ev StepEvent) {
	if t.callback != nil {
		t.callback(ev)
	}
}

// Run deletes all recorded resources in reverse dependency order. Absent
// resources count as already deleted; failures are collected so one stuck
// resource does not block the rest. The record is cleared only when every
// deletion succeeded; otherwise the surviving handles stay recorded and
// the next run retries just those.
func (t *Teardown) Run(ctx context.Context) error {
	rec, err := t.store.Load()
	if err != nil {
		return err
	}
	if rec == nil || len(rec.Resources) == 0 {
		logging.Info("no deployment record found, nothing to destroy")
		return nil
	}
	logging.Info("destroying deployment", "suffix", rec.RunSuffix)

	var errs []error
	for _, kind := range teardownPhases {
		keys := rec.KeysByKind(kind)
		if len(keys) == 0 {
			continue
		}
		prov, err := t.registry.Get(kind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, key := range keys {
			if err := ctx.Err(); err != nil {
				errs = append(errs, fmt.Errorf("teardown cancelled: %w", err))
				return errors.Join(errs...)
			}
			h := rec.Handle(key)
			if h == nil {
				continue
			}
			if err := t.deleteOne(ctx, prov, key, h); err != nil {
				t.emit(StepEvent{Key: key, Name: h.Name, Action: ActionFailed, Err: err})
				errs = append(errs, fmt.Errorf("failed to delete %s (%s): %w", key, h.Name, err))
				continue
			}
			rec.RemoveHandle(key)
			if err := t.store.Save(rec); err != nil {
				errs = append(errs, err)
			}
			t.emit(StepEvent{Key: key, Name: h.Name, Action: ActionDeleted})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d resource(s) failed to delete: %w", len(errs), errors.Join(errs...))
	}
	if err := t.store.Clear(); err != nil {
		return err
	}
	logging.Info("deployment destroyed", "suffix", rec.RunSuffix)
	return nil
}

// deleteOne removes a single resource, sweeping stray event wirings off
// functions first. Handles whose create never finished carry no
// identifier; their physical name addresses whatever may exist remotely.
func (t *Teardown) deleteOne(ctx context.Context, prov provider.Provider, key ir.Key, h *ir.Handle) error {
	if key.Kind == ir.KindFunction {
		if sw, ok := prov.(TriggerSweeper); ok {
			if err := sw.SweepTriggers(ctx, h.Name); err != nil {
				return err
			}
		}
	}

	id := h.ID
	if id == "" {
		if h.Name == "" {
			return nil
		}
		exists, err := prov.Exists(ctx, h.Name)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		id = h.Name
	}
	return Retry(ctx, t.retry, func() error {
		return prov.Delete(ctx, id)
	})
}
