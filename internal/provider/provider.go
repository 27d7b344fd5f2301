package provider

import (
	"context"

	"github.com/stockpile-io/stockpile/internal/ir"
)

// CreateRequest carries everything an adapter needs to provision one
// resource: the resolved physical name, the declaring spec, the handles
// of already-reconciled dependencies, and the caller identity.
type CreateRequest struct {
	Name     string
	Spec     *ir.Spec
	Deps     map[ir.Key]*ir.Handle
	Identity ir.Identity
}

// Details is the provider-reported view of a live resource.
type Details map[string]string

// Provider provisions one kind of resource. Implementations must make
// Create tolerate an already-existing resource (converge, don't fail)
// and Delete tolerate an already-absent one.
type Provider interface {
	// Exists reports whether a resource with the given physical name is live.
	Exists(ctx context.Context, name string) (bool, error)

	// Create provisions the resource and returns its stable identifier.
	Create(ctx context.Context, req CreateRequest) (string, error)

	// Describe returns attributes of a live resource by identifier.
	Describe(ctx context.Context, id string) (Details, error)

	// Delete removes the resource by identifier.
	Delete(ctx context.Context, id string) error
}
