package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stockpile-io/stockpile/internal/config"
	"github.com/stockpile-io/stockpile/internal/ir"
	"github.com/stockpile-io/stockpile/internal/provider"
)

var fakeKinds = []ir.Kind{
	ir.KindStorage,
	ir.KindTable,
	ir.KindFunction,
	ir.KindGateway,
	ir.KindTopic,
	ir.KindTrigger,
}

// fakeCloud is the remote state shared by every fake provider, so Exists,
// Create and Delete observe one consistent world.
type fakeCloud struct {
	resources map[string]string // "kind:name" -> identifier
	seq       int
	calls     map[string]int   // "op:kind" -> count
	failures  map[string]error // "op:kind" -> injected error
	flaky     map[string]error // like failures, consumed by the first call
}

func newFakeCloud() *fakeCloud {
	return &fakeCloud{
		resources: make(map[string]string),
		calls:     make(map[string]int),
		failures:  make(map[string]error),
		flaky:     make(map[string]error),
	}
}

func (c *fakeCloud) count(op string) int {
	total := 0
	for key, n := range c.calls {
		if strings.HasPrefix(key, op+":") {
			total += n
		}
	}
	return total
}

func (c *fakeCloud) failOn(op string, kind ir.Kind, err error) {
	c.failures[op+":"+string(kind)] = err
}

func (c *fakeCloud) failOnce(op string, kind ir.Kind, err error) {
	c.flaky[op+":"+string(kind)] = err
}

// managed lists the slots of provisioned resources, ignoring side objects
// like subscriptions, site documents and uploaded seeds.
func (c *fakeCloud) managed() []string {
	var slots []string
	for slot := range c.resources {
		prefix, _, _ := strings.Cut(slot, ":")
		for _, kind := range fakeKinds {
			if prefix == string(kind) {
				slots = append(slots, slot)
				break
			}
		}
	}
	sort.Strings(slots)
	return slots
}

// fakeProvider implements Provider plus every capability the engine
// type-asserts, all against the shared fakeCloud.
type fakeProvider struct {
	cloud *fakeCloud
	kind  ir.Kind
}

func (p *fakeProvider) slot(name string) string { return string(p.kind) + ":" + name }

func (p *fakeProvider) op(name string) error {
	key := name + ":" + string(p.kind)
	p.cloud.calls[key]++
	if err, ok := p.cloud.flaky[key]; ok {
		delete(p.cloud.flaky, key)
		return err
	}
	return p.cloud.failures[key]
}

func (p *fakeProvider) Exists(ctx context.Context, name string) (bool, error) {
	if err := p.op("exists"); err != nil {
		return false, err
	}
	_, ok := p.cloud.resources[p.slot(name)]
	return ok, nil
}

func (p *fakeProvider) Create(ctx context.Context, req provider.CreateRequest) (string, error) {
	if err := p.op("create"); err != nil {
		return "", err
	}
	if id, ok := p.cloud.resources[p.slot(req.Name)]; ok {
		return id, nil
	}
	p.cloud.seq++
	id := fmt.Sprintf("%s-%04d", p.kind, p.cloud.seq)
	p.cloud.resources[p.slot(req.Name)] = id
	return id, nil
}

func (p *fakeProvider) Describe(ctx context.Context, id string) (provider.Details, error) {
	if err := p.op("describe"); err != nil {
		return nil, err
	}
	switch p.kind {
	case ir.KindGateway:
		return provider.Details{"endpoint": "https://" + id + ".execute-api.us-east-1.amazonaws.com"}, nil
	case ir.KindTrigger:
		return provider.Details{"ready": "true"}, nil
	case ir.KindTable:
		return provider.Details{"stream_arn": id + "/stream/2024-01-01"}, nil
	}
	return provider.Details{}, nil
}

func (p *fakeProvider) Delete(ctx context.Context, id string) error {
	if err := p.op("delete"); err != nil {
		return err
	}
	for slot, val := range p.cloud.resources {
		if val == id || slot == p.slot(id) {
			delete(p.cloud.resources, slot)
			return nil
		}
	}
	return nil
}

func (p *fakeProvider) EnsureSubscription(ctx context.Context, topicID, protocol, endpoint string) (bool, error) {
	if err := p.op("subscribe"); err != nil {
		return false, err
	}
	slot := "subscription:" + topicID + ":" + protocol + ":" + endpoint
	if _, ok := p.cloud.resources[slot]; ok {
		return false, nil
	}
	p.cloud.resources[slot] = "sub-" + endpoint
	return true, nil
}

func (p *fakeProvider) PublishSite(ctx context.Context, bucket string, doc []byte) (string, error) {
	if err := p.op("publish"); err != nil {
		return "", err
	}
	p.cloud.resources["site:"+bucket] = string(doc)
	return "http://" + bucket + ".s3-website-us-east-1.amazonaws.com/", nil
}

func (p *fakeProvider) Upload(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	if err := p.op("upload"); err != nil {
		return err
	}
	p.cloud.resources["object:"+bucket+"/"+key] = string(body)
	return nil
}

func (p *fakeProvider) SweepTriggers(ctx context.Context, functionName string) error {
	return p.op("sweep")
}

// fakeStore keeps records in memory, round-tripping through JSON so a
// later Load sees exactly what Save persisted and nothing more.
type fakeStore struct {
	saved    *ir.Record
	saves    int
	failSave int // 1-based index of the save to fail, 0 disables
	clears   int
}

func cloneRecord(rec *ir.Record) *ir.Record {
	if rec == nil {
		return nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		panic(err)
	}
	out := &ir.Record{}
	if err := json.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}

func (s *fakeStore) Load() (*ir.Record, error) { return cloneRecord(s.saved), nil }

func (s *fakeStore) Save(rec *ir.Record) error {
	s.saves++
	if s.failSave > 0 && s.saves == s.failSave {
		return fmt.Errorf("injected failure at save %d", s.saves)
	}
	s.saved = cloneRecord(rec)
	return nil
}

func (s *fakeStore) Clear() error {
	s.saved = nil
	s.clears++
	return nil
}

type fakeResolver struct{ err error }

func (r *fakeResolver) Resolve(ctx context.Context) (ir.Identity, error) {
	if r.err != nil {
		return ir.Identity{}, r.err
	}
	return ir.Identity{
		Account:   "123456789012",
		Partition: "aws",
		Region:    "us-east-1",
		RoleARN:   "arn:aws:iam::123456789012:role/LabRole",
	}, nil
}

// harness wires the engine against the in-memory fakes. Adjust cfg before
// calling orchestrator; the orchestrator copies it at construction.
type harness struct {
	cloud  *fakeCloud
	store  *fakeStore
	reg    *provider.Registry
	cfg    config.Config
	events []StepEvent
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cloud := newFakeCloud()
	reg := provider.NewRegistry()
	for _, kind := range fakeKinds {
		reg.Register(kind, &fakeProvider{cloud: cloud, kind: kind})
	}
	dir := t.TempDir()
	return &harness{
		cloud: cloud,
		store: &fakeStore{},
		reg:   reg,
		cfg: config.Config{
			Region:   "us-east-1",
			RoleName: "LabRole",
			WebDir:   filepath.Join(dir, "web"),
			DataDir:  filepath.Join(dir, "data"),
		},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	orch := NewOrchestrator(h.reg, h.store, &fakeResolver{}, h.cfg)
	orch.OnStep(func(ev StepEvent) { h.events = append(h.events, ev) })
	return orch
}

func (h *harness) teardown() *Teardown {
	td := NewTeardown(h.reg, h.store)
	td.OnStep(func(ev StepEvent) { h.events = append(h.events, ev) })
	return td
}
