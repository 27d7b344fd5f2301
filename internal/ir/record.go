package ir

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind identifies a class of managed resource.
type Kind string

const (
	KindStorage  Kind = "storage"
	KindTable    Kind = "table"
	KindFunction Kind = "function"
	KindGateway  Kind = "gateway"
	KindTopic    Kind = "topic"
	KindTrigger  Kind = "trigger"
)

// Key is the logical identity of a resource within a deployment.
type Key struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
}

func (k Key) String() string {
	return string(k.Kind) + "/" + k.Name
}

// ParseKey parses the "kind/name" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	kind, name, ok := strings.Cut(s, "/")
	if !ok || kind == "" || name == "" {
		return Key{}, fmt.Errorf("malformed resource key %q", s)
	}
	return Key{Kind: Kind(kind), Name: name}, nil
}

// Handle lifecycle statuses.
const (
	StatusPending  = "pending"
	StatusCreated  = "created"
	StatusVerified = "verified"
	StatusDeleted  = "deleted"
)

// Handle records the outcome of provisioning a single resource.
type Handle struct {
	Kind   Kind   `json:"kind"`
	Name   string `json:"name"` // physical (remote) name
	ID     string `json:"id"`   // provider-assigned identifier
	Status string `json:"status"`
}

// Record is the persisted deployment state: one run suffix plus the
// handles of every resource reconciled so far.
type Record struct {
	RunSuffix string             `json:"runSuffix"`
	CreatedAt time.Time          `json:"createdAt"`
	Resources map[string]*Handle `json:"resources"`
	Outputs   map[string]string  `json:"outputs,omitempty"`
}

// NewRecord returns an empty record with a freshly generated run suffix.
func NewRecord(now time.Time) *Record {
	return &Record{
		RunSuffix: NewRunSuffix(now),
		CreatedAt: now.UTC(),
		Resources: make(map[string]*Handle),
		Outputs:   make(map[string]string),
	}
}

// NewRunSuffix generates a deployment-unique suffix: the date plus a short
// random token, e.g. "20240101-abcd1234".
func NewRunSuffix(now time.Time) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return now.UTC().Format("20060102") + "-" + token
}

// Handle returns the stored handle for key, or nil when none exists.
func (r *Record) Handle(key Key) *Handle {
	return r.Resources[key.String()]
}

// SetHandle stores h under key, replacing any prior handle.
func (r *Record) SetHandle(key Key, h *Handle) {
	if r.Resources == nil {
		r.Resources = make(map[string]*Handle)
	}
	r.Resources[key.String()] = h
}

// RemoveHandle drops the handle for key, if present.
func (r *Record) RemoveHandle(key Key) {
	delete(r.Resources, key.String())
}

// KeysByKind returns the keys of all recorded handles of the given kind,
// sorted by name for deterministic iteration.
func (r *Record) KeysByKind(kind Kind) []Key {
	var keys []Key
	for s, h := range r.Resources {
		if h == nil || h.Kind != kind {
			continue
		}
		key, err := ParseKey(s)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// Identity carries resolved caller facts used to derive ARNs.
type Identity struct {
	Account   string
	Partition string
	Region    string
	RoleARN   string
}
