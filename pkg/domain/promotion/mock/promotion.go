// In-memory promotion request store, for tests.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/promotion"
)

type Promotion struct {
	mu       sync.Mutex
	seq      int
	requests map[string]*domain.PromotionRequest
}

func New() *Promotion {
	return &Promotion{requests: map[string]*domain.PromotionRequest{}}
}

var _ promotion.Interface = &Promotion{}

func (p *Promotion) Open(_ context.Context, artifact domain.Artifact) (domain.PromotionRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, req := range p.requests {
		if req.ArtifactName == artifact.Name && req.ArtifactVersion == artifact.Version {
			return *req, nil
		}
	}

	p.seq += 1
	req := &domain.PromotionRequest{
		ID:              fmt.Sprintf("promotion-%d", p.seq),
		ArtifactName:    artifact.Name,
		ArtifactVersion: artifact.Version,
		Approval:        domain.ApprovalPending,
		Propagation:     domain.PropagationNotStarted,
		OpenedAt:        time.Now(),
	}
	p.requests[req.ID] = req
	return *req, nil
}

func (p *Promotion) Get(_ context.Context, id string) (domain.PromotionRequest, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[id]
	if !ok {
		return domain.PromotionRequest{}, promotion.ErrNotFound
	}
	return *req, nil
}

func (p *Promotion) SetApproval(_ context.Context, id string, state domain.ApprovalState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[id]
	if !ok {
		return promotion.ErrNotFound
	}
	req.Approval = state
	return nil
}

func (p *Promotion) SetPropagation(_ context.Context, id string, state domain.PropagationState) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	req, ok := p.requests[id]
	if !ok {
		return promotion.ErrNotFound
	}
	req.Propagation = state
	if state == domain.PropagationConfirmed || state == domain.PropagationTimedOut {
		now := time.Now()
		req.ResolvedAt = &now
	}
	return nil
}
