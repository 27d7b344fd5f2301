package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/stockpile-io/stockpile/internal/assets"
	"github.com/stockpile-io/stockpile/internal/config"
	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/logging"
	"github.com/stockpile-io/stockpile/internal/provider"
)

// Readiness gates replace fixed post-create sleeps: each poll watches the
// resource's own read API and fails hard on expiry.
const (
	triggerReadyTimeout  = 2 * time.Minute
	triggerReadyInterval = 3 * time.Second
)

// IdentityResolver resolves the caller's account facts once per run.
type IdentityResolver interface {
	Resolve(ctx context.Context) (ir.Identity, error)
}

// Subscriber is a topic provider that can attach a notification endpoint
// without duplicating an existing subscription.
type Subscriber interface {
	EnsureSubscription(ctx context.Context, topicID, protocol, endpoint string) (bool, error)
}

// SitePublisher is a storage provider that can expose a bucket as a
// public website.
type SitePublisher interface {
	PublishSite(ctx context.Context, bucket string, doc []byte) (string, error)
}

// Uploader is a storage provider that can store local payload objects.
type Uploader interface {
	Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error
}

// Orchestrator drives a full reconcile of the inventory deployment.
type Orchestrator struct {
	registry *provider.Registry
	store    Store
	resolver IdentityResolver
	cfg      config.Config
	callback StepCallback
}

func NewOrchestrator(registry *provider.Registry, store Store, resolver IdentityResolver, cfg config.Config) *Orchestrator {
	return &Orchestrator{
		registry: registry,
		store:    store,
		resolver: resolver,
		cfg:      cfg,
	}
}

// OnStep registers a progress callback.
func (o *Orchestrator) OnStep(cb StepCallback) {
	o.callback = cb
}

func (o *Orchestrator) emit(ev StepEvent) {
	if o.callback != nil {
		o.callback(ev)
	}
}

// Apply converges every resource of the deployment in dependency order,
// then publishes the dashboard and seeds initial data. Completed work is
// persisted step by step; a failed run resumes where it stopped instead
// of rolling anything back.
func (o *Orchestrator) Apply(ctx context.Context) (*ir.Record, error) {
	rec, err := o.store.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = ir.NewRecord(time.Now())
		if err := o.store.Save(rec); err != nil {
			return nil, err
		}
		logging.Info("starting new deployment", "suffix", rec.RunSuffix)
	} else {
		logging.Info("resuming deployment", "suffix", rec.RunSuffix)
	}
	if rec.Resources == nil {
		rec.Resources = make(map[string]*ir.Handle)
	}
	if rec.Outputs == nil {
		rec.Outputs = make(map[string]string)
	}

	identity, err := o.resolver.Resolve(ctx)
	if err != nil {
		return rec, fmt.Errorf("failed to resolve caller identity: %w", err)
	}
	logging.Debug("caller identity resolved",
		"account", identity.Account, "partition", identity.Partition, "role", identity.RoleARN)

	specs := Pipeline()
	dag, err := BuildDAG(specs)
	if err != nil {
		return rec, err
	}
	byKey := make(map[ir.Key]*ir.Spec, len(specs))
	for _, s := range specs {
		byKey[s.Key] = s
	}

	rc := NewReconciler(o.registry, o.store)
	for _, key := range dag.CreationOrder() {
		if err := ctx.Err(); err != nil {
			return rec, fmt.Errorf("apply cancelled: %w", err)
		}
		h, action, err := rc.Reconcile(ctx, rec, byKey[key], identity)
		if err != nil {
			o.emit(StepEvent{Key: key, Action: ActionFailed, Err: err})
			return rec, err
		}
		o.emit(StepEvent{Key: key, Name: h.Name, Action: action})

		if key == KeyAlertTopic {
			if err := o.ensureSubscription(ctx, h); err != nil {
				return rec, err
			}
		}
	}

	apiURL, err := o.gatewayEndpoint(ctx, rec)
	if err != nil {
		return rec, err
	}

	if err := o.publishSite(ctx, rec, apiURL); err != nil {
		return rec, err
	}
	if err := o.seedData(ctx, rec); err != nil {
		return rec, err
	}

	o.collectOutputs(rec, apiURL)
	if err := o.store.Save(rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// gatewayEndpoint asks the gateway provider for the live invoke URL.
func (o *Orchestrator) gatewayEndpoint(ctx context.Context, rec *ir.Record) (string, error) {
	h := rec.Handle(KeyHTTPAPI)
	if h == nil || h.ID == "" {
		return "", fmt.Errorf("gateway handle missing from record")
	}
	prov, err := o.registry.Get(ir.KindGateway)
	if err != nil {
		return "", err
	}
	det, err := prov.Describe(ctx, h.ID)
	if err != nil {
		return "", fmt.Errorf("failed to describe gateway %s: %w", h.ID, err)
	}
	endpoint := det["endpoint"]
	if endpoint == "" {
		return "", fmt.Errorf("gateway %s reported no endpoint", h.ID)
	}
	return endpoint, nil
}

// ensureSubscription attaches the alert email to the topic, at most once.
func (o *Orchestrator) ensureSubscription(ctx context.Context, topic *ir.Handle) error {
	if o.cfg.NotifyEmail == "" {
		o.emit(StepEvent{Key: KeyAlertTopic, Name: topic.Name, Action: ActionSkipped,
			Detail: "no notification email configured"})
		logging.Warn("NOTIFY_EMAIL not set, skipping alert subscription")
		return nil
	}
	prov, err := o.registry.Get(ir.KindTopic)
	if err != nil {
		return err
	}
	sub, ok := prov.(Subscriber)
	if !ok {
		return nil
	}
	created, err := sub.EnsureSubscription(ctx, topic.ID, "email", o.cfg.NotifyEmail)
	if err != nil {
		return fmt.Errorf("failed to subscribe %s to %s: %w", o.cfg.NotifyEmail, topic.Name, err)
	}
	detail := "email subscription"
	action := ActionReused
	if created {
		action = ActionCreated
		detail = "email subscription (confirmation pending)"
	}
	o.emit(StepEvent{Key: KeyAlertTopic, Name: topic.Name, Action: action, Detail: detail})
	return nil
}

// publishSite renders the dashboard with the live endpoint baked in and
// exposes the web bucket as a public website. No dashboard source in the
// tree means nothing to publish, which is fine.
func (o *Orchestrator) publishSite(ctx context.Context, rec *ir.Record, apiURL string) error {
	web := rec.Handle(KeyWebBucket)
	if web == nil || web.Name == "" {
		return fmt.Errorf("web bucket handle missing from record")
	}

	doc, err := assets.RenderSite(filepath.Join(o.cfg.WebDir, "index.html"), apiURL)
	if errors.Is(err, fs.ErrNotExist) {
		o.emit(StepEvent{Key: KeyWebBucket, Name: web.Name, Action: ActionSkipped,
			Detail: "no dashboard source found"})
		logging.Warn("dashboard source missing, skipping site publication", "dir", o.cfg.WebDir)
		return nil
	}
	if err != nil {
		return err
	}

	prov, err := o.registry.Get(ir.KindStorage)
	if err != nil {
		return err
	}
	pub, ok := prov.(SitePublisher)
	if !ok {
		return nil
	}
	url, err := pub.PublishSite(ctx, web.Name, doc)
	if err != nil {
		return fmt.Errorf("failed to publish site to %s: %w", web.Name, err)
	}
	rec.Outputs["web_url"] = url
	o.emit(StepEvent{Key: KeyWebBucket, Name: web.Name, Action: ActionCreated, Detail: "dashboard published"})
	return nil
}

// seedData uploads local seed files once the event wiring is confirmed
// live, so the very first objects already fire the loader.
func (o *Orchestrator) seedData(ctx context.Context, rec *ir.Record) error {
	uploads := rec.Handle(KeyUploadsBucket)
	if uploads == nil || uploads.Name == "" {
		return fmt.Errorf("uploads bucket handle missing from record")
	}

	files, err := assets.DiscoverSeeds(o.cfg.DataDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		o.emit(StepEvent{Key: KeyUploadsBucket, Name: uploads.Name, Action: ActionSkipped,
			Detail: "no seed data found"})
		logging.Warn("no seed files found, skipping initial upload", "dir", o.cfg.DataDir)
		return nil
	}

	if err := o.waitTriggersLive(ctx, rec); err != nil {
		return err
	}

	prov, err := o.registry.Get(ir.KindStorage)
	if err != nil {
		return err
	}
	up, ok := prov.(Uploader)
	if !ok {
		return nil
	}
	for _, path := range files {
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read seed file %s: %w", path, err)
		}
		key := filepath.Base(path)
		if err := up.Upload(ctx, uploads.Name, key, body, "text/csv"); err != nil {
			return fmt.Errorf("failed to upload seed %s: %w", key, err)
		}
		o.emit(StepEvent{Key: KeyUploadsBucket, Name: uploads.Name, Action: ActionCreated,
			Detail: "seeded " + key})
	}
	return nil
}

// waitTriggersLive blocks until both event wirings report ready.
func (o *Orchestrator) waitTriggersLive(ctx context.Context, rec *ir.Record) error {
	prov, err := o.registry.Get(ir.KindTrigger)
	if err != nil {
		return err
	}
	for _, key := range []ir.Key{KeyUploadTrigger, KeyStreamTrigger} {
		h := rec.Handle(key)
		if h == nil || h.ID == "" {
			return fmt.Errorf("trigger %s missing from record", key)
		}
		err := provider.WaitUntil(ctx, key.String(), triggerReadyTimeout, triggerReadyInterval,
			func(ctx context.Context) (bool, error) {
				det, err := prov.Describe(ctx, h.ID)
				if err != nil {
					return false, err
				}
				return det["ready"] == "true", nil
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// collectOutputs records the operator-facing facts of the deployment.
func (o *Orchestrator) collectOutputs(rec *ir.Record, apiURL string) {
	if rec.Outputs == nil {
		rec.Outputs = make(map[string]string)
	}
	rec.Outputs["api_url"] = apiURL
	if h := rec.Handle(KeyUploadsBucket); h != nil {
		rec.Outputs["uploads_bucket"] = h.Name
	}
	if h := rec.Handle(KeyInventoryTable); h != nil {
		rec.Outputs["table_arn"] = h.ID
	}
	if h := rec.Handle(KeyAlertTopic); h != nil {
		rec.Outputs["topic_arn"] = h.ID
	}
}
