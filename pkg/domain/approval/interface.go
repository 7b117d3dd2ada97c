package approval

import (
	"context"
	"errors"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
)

var (
	ErrNotFound = errors.New("no such approval request")

	// ErrAlreadyDecided is returned by Decide on non-pending requests.
	// Decisions are final; there is no re-decide.
	ErrAlreadyDecided = errors.New("approval request already decided")
)

type Kind string

const (
	// Approval to resubmit failed training jobs.
	KindRetry Kind = "retry"

	// Approval to promote one artifact to the shared registry.
	KindPromotion Kind = "promotion"
)

func (k Kind) String() string {
	return string(k)
}

// Request is one pending human decision.
//
// Requests are durable: they live in a store, not in process memory,
// so a decision window spanning days or weeks survives restarts of
// both the coordinator and the approval frontend.
type Request struct {
	ID      string
	Kind    Kind
	Subject string

	// Summary carries whatever the approver should see
	// (metrics, failure counts, artifact identity).
	Summary map[string]string

	Decision  domain.ApprovalState
	OpenedAt  time.Time
	DecidedAt *time.Time
}

// Interface is the durable human approval channel.
type Interface interface {
	// Open records a new pending request and returns it with ID set.
	Open(ctx context.Context, kind Kind, subject string, summary map[string]string) (Request, error)

	Get(ctx context.Context, id string) (Request, error)

	// ListPending returns undecided requests, oldest first.
	ListPending(ctx context.Context) ([]Request, error)

	// Decide resolves a pending request. Deciding a request twice or
	// deciding to a non-terminal state is an error.
	Decide(ctx context.Context, id string, decision domain.ApprovalState) error

	// Await suspends until the request is decided or timeout elapses.
	// On timeout it returns ApprovalTimedOut with nil error; the
	// request itself stays pending (a later decision is still
	// meaningful to a future run).
	//
	// Implementations must suspend cooperatively (no busy-wait) and
	// hold no exclusive resource while waiting.
	Await(ctx context.Context, id string, timeout time.Duration) (domain.ApprovalState, error)
}
