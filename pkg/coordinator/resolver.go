package coordinator

import (
	"context"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/registry"
)

// Resolver discovers promoted artifacts by content, not by reference.
//
// A downstream environment recomputes the lineage hash from the
// configuration it holds and asks its visible registry for a matching
// version. Nothing is ever handed from the training run to the
// deploying run; both just agree on the hash.
type Resolver struct {
	// Target is the registry visible to the resolving environment.
	Target registry.Interface
}

// Resolve returns the most recent artifact version matching the unit's
// current lineage hash.
//
// ok is false when no matching version has been promoted yet. That is
// not an error: the unit is simply skipped this cycle.
func (r *Resolver) Resolve(
	ctx context.Context, unit domain.UnitConfig,
) (artifact domain.Artifact, ok bool, err error) {
	hash, err := unit.LineageHash()
	if err != nil {
		return domain.Artifact{}, false, err
	}

	matching, err := r.Target.List(
		ctx, unit.ModelName, registry.TagFilter{domain.TagLineageHash: hash},
	)
	if err != nil {
		return domain.Artifact{}, false, err
	}

	artifact, ok = registry.Latest(matching)
	return artifact, ok, nil
}
