// In-memory approval channel, for tests.
//
// Decisions wake waiters over a broadcast channel so Await suspends
// just as the durable implementation does.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/approval"
)

type Approval struct {
	mu       sync.Mutex
	seq      int
	requests map[string]*approval.Request
	decided  chan struct{} // closed and replaced on every decision

	// AutoDecide, when set, is applied to every opened request
	// immediately. Handy for tests that do not care about the gate.
	AutoDecide func(req approval.Request) (domain.ApprovalState, bool)
}

func New() *Approval {
	return &Approval{
		requests: map[string]*approval.Request{},
		decided:  make(chan struct{}),
	}
}

var _ approval.Interface = &Approval{}

func (a *Approval) Open(
	_ context.Context, kind approval.Kind, subject string, summary map[string]string,
) (approval.Request, error) {
	a.mu.Lock()
	a.seq += 1
	req := &approval.Request{
		ID:       fmt.Sprintf("approval-%d", a.seq),
		Kind:     kind,
		Subject:  subject,
		Summary:  summary,
		Decision: domain.ApprovalPending,
		OpenedAt: time.Now(),
	}
	a.requests[req.ID] = req
	a.mu.Unlock()

	if a.AutoDecide != nil {
		if decision, ok := a.AutoDecide(*req); ok {
			if err := a.Decide(context.Background(), req.ID, decision); err != nil {
				return approval.Request{}, err
			}
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return *a.requests[req.ID], nil
}

func (a *Approval) Get(_ context.Context, id string) (approval.Request, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, ok := a.requests[id]
	if !ok {
		return approval.Request{}, approval.ErrNotFound
	}
	return *req, nil
}

func (a *Approval) ListPending(_ context.Context) ([]approval.Request, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	pending := []approval.Request{}
	for _, req := range a.requests {
		if req.Decision == domain.ApprovalPending {
			pending = append(pending, *req)
		}
	}
	return pending, nil
}

func (a *Approval) Decide(_ context.Context, id string, decision domain.ApprovalState) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	req, ok := a.requests[id]
	if !ok {
		return approval.ErrNotFound
	}
	if req.Decision != domain.ApprovalPending {
		return fmt.Errorf("%w: %s", approval.ErrAlreadyDecided, id)
	}

	now := time.Now()
	req.Decision = decision
	req.DecidedAt = &now

	close(a.decided)
	a.decided = make(chan struct{})
	return nil
}

func (a *Approval) Await(
	ctx context.Context, id string, timeout time.Duration,
) (domain.ApprovalState, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		a.mu.Lock()
		req, ok := a.requests[id]
		if !ok {
			a.mu.Unlock()
			return "", approval.ErrNotFound
		}
		if req.Decision != domain.ApprovalPending {
			decision := req.Decision
			a.mu.Unlock()
			return decision, nil
		}
		wakeup := a.decided
		a.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return domain.ApprovalTimedOut, nil
		case <-wakeup:
		}
	}
}
