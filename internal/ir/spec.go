package ir

// Spec declares a single resource to provision. Specs are static program
// data; everything runtime-dependent (the run suffix, dependency handles)
// is resolved during reconciliation.
type Spec struct {
	Key       Key
	BaseName  string // physical name, or name prefix when Suffixed
	Suffixed  bool   // append "-{runSuffix}" to BaseName
	DependsOn []Key

	Function *FunctionSpec
	Table    *TableSpec
	Gateway  *GatewaySpec
	Trigger  *TriggerSpec
}

// PhysicalName resolves the deterministic remote name for a run suffix.
func (s *Spec) PhysicalName(suffix string) string {
	if s.Suffixed {
		return s.BaseName + "-" + suffix
	}
	return s.BaseName
}

// DepRef names an attribute of a dependency resource, resolved from its
// handle at reconcile time.
type DepRef struct {
	Key  Key
	Attr string // AttrName or AttrID
}

const (
	AttrName = "name"
	AttrID   = "id"
)

// FunctionSpec declares a serverless function.
type FunctionSpec struct {
	SourceDir   string            // directory holding the function source
	Env         map[string]string // static environment
	EnvFromDeps map[string]DepRef // environment drawn from dependencies
}

// TableSpec declares a key-value table.
type TableSpec struct {
	PartitionKey string
	SortKey      string
	Stream       bool // emit a change stream with before/after images
}

// GatewaySpec declares an HTTP API fronting a function.
type GatewaySpec struct {
	Routes []string // route keys, e.g. "GET /items"
	Stage  string
	Target Key // function integrated behind the routes
}

// Trigger styles.
const (
	TriggerBucketNotification = "bucket-notification"
	TriggerStreamMapping      = "stream-mapping"
)

// TriggerSpec declares an event wiring between two resources.
type TriggerSpec struct {
	Style        string
	Source       Key    // bucket or table emitting events
	Target       Key    // function receiving events
	SuffixFilter string // object-key suffix filter for bucket notifications
}
