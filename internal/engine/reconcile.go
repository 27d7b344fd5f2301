package engine

import (
	"context"
	"fmt"

	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// Store persists deployment records. Reconciliation saves after every
// step so an interrupted run loses at most the resource in flight.
type Store interface {
	Load() (*ir.Record, error)
	Save(*ir.Record) error
	Clear() error
}

// Step outcomes reported through StepEvent.
const (
	ActionCreated = "created"
	ActionReused  = "reused"
	ActionDeleted = "deleted"
	ActionSkipped = "skipped"
	ActionFailed  = "failed"
)

// StepEvent reports the outcome of one provisioning or teardown step.
type StepEvent struct {
	Key    ir.Key
	Name   string
	Action string
	Detail string
	Err    error
}

// StepCallback receives progress events if set.
type StepCallback func(StepEvent)

// Reconciler converges single resources against the record.
type Reconciler struct {
	registry *provider.Registry
	store    Store
	retry    *RetryPolicy // nil means DefaultRetryPolicy
}

func NewReconciler(registry *provider.Registry, store Store) *Reconciler {
	return &Reconciler{registry: registry, store: store}
}

// Reconcile brings one resource to its desired state and returns its
// handle plus the action taken. A recorded resource that still exists
// remotely is reused untouched; a recorded resource that vanished is
// recreated under the same deterministic name. Remote truth wins over
// the record.
func (r *Reconciler) Reconcile(ctx context.Context, rec *ir.Record, spec *ir.Spec, identity ir.Identity) (*ir.Handle, string, error) {
	prov, err := r.registry.Get(spec.Key.Kind)
	if err != nil {
		return nil, ActionFailed, err
	}

	name, err := physicalName(rec, spec)
	if err != nil {
		return nil, ActionFailed, err
	}

	if h := rec.Handle(spec.Key); h != nil && h.ID != "" {
		exists, err := prov.Exists(ctx, name)
		if err != nil {
			return nil, ActionFailed, fmt.Errorf("failed to check %s (%s): %w", spec.Key, name, err)
		}
		if exists {
			h.Name = name
			h.Status = ir.StatusVerified
			if err := r.store.Save(rec); err != nil {
				return nil, ActionFailed, err
			}
			logging.Debug("resource verified", "key", spec.Key.String(), "name", name, "id", h.ID)
			return h, ActionReused, nil
		}
		logging.Warn("recorded resource missing remotely, recreating",
			"key", spec.Key.String(), "name", name, "id", h.ID)
	}

	deps, err := resolveDeps(rec, spec)
	if err != nil {
		return nil, ActionFailed, err
	}

	// Mark the step in flight so a crash between here and the save after
	// Create is visible in the record.
	rec.SetHandle(spec.Key, &ir.Handle{Kind: spec.Key.Kind, Name: name, Status: ir.StatusPending})
	if err := r.store.Save(rec); err != nil {
		return nil, ActionFailed, err
	}

	var id string
	err = Retry(ctx, r.retry, func() error {
		var cerr error
		id, cerr = prov.Create(ctx, provider.CreateRequest{
			Name:     name,
			Spec:     spec,
			Deps:     deps,
			Identity: identity,
		})
		return cerr
	})
	if err != nil {
		return nil, ActionFailed, fmt.Errorf("failed to provision %s (%s): %w", spec.Key, name, err)
	}

	h := &ir.Handle{Kind: spec.Key.Kind, Name: name, ID: id, Status: ir.StatusCreated}
	rec.SetHandle(spec.Key, h)
	if err := r.store.Save(rec); err != nil {
		return nil, ActionFailed, err
	}
	logging.Debug("resource provisioned", "key", spec.Key.String(), "name", name, "id", id)
	return h, ActionCreated, nil
}

// resolveDeps collects the handles of spec's declared dependencies.
func resolveDeps(rec *ir.Record, spec *ir.Spec) (map[ir.Key]*ir.Handle, error) {
	deps := make(map[ir.Key]*ir.Handle, len(spec.DependsOn))
	for _, key := range spec.DependsOn {
		h := rec.Handle(key)
		if h == nil || h.ID == "" {
			return nil, fmt.Errorf("%s depends on %s, which is not reconciled yet", spec.Key, key)
		}
		deps[key] = h
	}
	return deps, nil
}

// physicalName resolves the remote name for spec. Triggers carry no name
// of their own; they are addressed through their hosting resource.
func physicalName(rec *ir.Record, spec *ir.Spec) (string, error) {
	if spec.Trigger != nil {
		host := spec.Trigger.Source
		if spec.Trigger.Style == ir.TriggerStreamMapping {
			host = spec.Trigger.Target
		}
		h := rec.Handle(host)
		if h == nil || h.Name == "" {
			return "", fmt.Errorf("trigger %s host %s is not reconciled yet", spec.Key, host)
		}
		return h.Name, nil
	}
	return spec.PhysicalName(rec.RunSuffix), nil
}
