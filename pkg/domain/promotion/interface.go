package promotion

import (
	"context"
	"errors"

	"github.com/opsline/trainyard/pkg/domain"
)

var ErrNotFound = errors.New("no such promotion request")

// Interface persists PromotionRequests.
//
// Durability matters for the same reason as approvals: a request can
// stay pending for weeks, so its state must outlive any process.
type Interface interface {
	// Open records a request for the artifact. At most one request
	// exists per (name, version); reopening returns the existing one
	// unchanged, so a restarted coordinator picks up where it left off.
	Open(ctx context.Context, artifact domain.Artifact) (domain.PromotionRequest, error)

	Get(ctx context.Context, id string) (domain.PromotionRequest, error)

	SetApproval(ctx context.Context, id string, state domain.ApprovalState) error

	SetPropagation(ctx context.Context, id string, state domain.PropagationState) error
}
