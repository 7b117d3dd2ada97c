// In-memory artifact store, for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/registry"
)

type Registry struct {
	mu        sync.Mutex
	artifacts map[string][]domain.Artifact

	// Errors, when set, are returned by the corresponding method
	// instead of doing anything.
	Errors struct {
		CreateVersion error
		Put           error
		List          error
		Get           error
		Empty         error
	}
}

func New() *Registry {
	return &Registry{artifacts: map[string][]domain.Artifact{}}
}

var _ registry.Interface = &Registry{}

func (r *Registry) CreateVersion(
	_ context.Context, name string, location string, tags map[string]string,
) (domain.Artifact, error) {
	if err := r.Errors.CreateVersion; err != nil {
		return domain.Artifact{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	version := 0
	for _, a := range r.artifacts[name] {
		if version < a.Version {
			version = a.Version
		}
	}

	copied := map[string]string{}
	for k, v := range tags {
		copied[k] = v
	}

	artifact := domain.Artifact{
		Name:      name,
		Version:   version + 1,
		Location:  location,
		Tags:      copied,
		CreatedAt: time.Now(),
	}
	r.artifacts[name] = append(r.artifacts[name], artifact)
	return artifact, nil
}

func (r *Registry) Put(_ context.Context, artifact domain.Artifact) error {
	if err := r.Errors.Put; err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.artifacts[artifact.Name] {
		if a.Version == artifact.Version {
			return registry.ErrAlreadyExists
		}
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}
	r.artifacts[artifact.Name] = append(r.artifacts[artifact.Name], artifact)
	return nil
}

func (r *Registry) List(
	_ context.Context, name string, filter registry.TagFilter,
) ([]domain.Artifact, error) {
	if err := r.Errors.List; err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	found := []domain.Artifact{}
NEXT:
	for _, a := range r.artifacts[name] {
		for k, v := range filter {
			if a.Tags[k] != v {
				continue NEXT
			}
		}
		found = append(found, a)
	}

	// kept insertion-ordered; versions only grow, so this is
	// ascending version order as the interface requires.
	return found, nil
}

func (r *Registry) Get(_ context.Context, name string, version int) (domain.Artifact, error) {
	if err := r.Errors.Get; err != nil {
		return domain.Artifact{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.artifacts[name] {
		if a.Version == version {
			return a, nil
		}
	}
	return domain.Artifact{}, registry.ErrNotFound
}

func (r *Registry) Empty(_ context.Context) (bool, error) {
	if err := r.Errors.Empty; err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, versions := range r.artifacts {
		if 0 < len(versions) {
			return false, nil
		}
	}
	return true, nil
}
