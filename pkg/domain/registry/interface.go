package registry

import (
	"context"
	"errors"

	"github.com/opsline/trainyard/pkg/domain"
)

var (
	ErrNotFound = errors.New("no such artifact")

	// ErrAlreadyExists is returned by Put when (name, version) is taken.
	ErrAlreadyExists = errors.New("artifact version already exists")
)

// TagFilter selects artifacts carrying all given tag values.
type TagFilter map[string]string

// Interface is an artifact store: the per-environment workspace store
// and the shared registry both implement it.
type Interface interface {
	// CreateVersion registers a new version of the named artifact and
	// allocates the next monotonic version number.
	CreateVersion(ctx context.Context, name string, location string, tags map[string]string) (domain.Artifact, error)

	// Put inserts an artifact with an explicit version, used when
	// copying between stores so the shared registry keeps the origin's
	// version numbers. ErrAlreadyExists when (name, version) is taken.
	Put(ctx context.Context, artifact domain.Artifact) error

	// List returns all versions of the named artifact matching every
	// tag in filter, in ascending version order.
	List(ctx context.Context, name string, filter TagFilter) ([]domain.Artifact, error)

	// Get returns one exact version. ErrNotFound when absent.
	Get(ctx context.Context, name string, version int) (domain.Artifact, error)

	// Empty reports whether the store holds no artifact at all.
	// Used only to detect "is this the first-ever run".
	Empty(ctx context.Context) (bool, error)
}

// Latest picks the most recent version out of List output.
//
// ok is false when no version matches.
func Latest(artifacts []domain.Artifact) (domain.Artifact, bool) {
	if len(artifacts) == 0 {
		return domain.Artifact{}, false
	}
	latest := artifacts[0]
	for _, a := range artifacts[1:] {
		if latest.Version < a.Version {
			latest = a
		}
	}
	return latest, true
}
