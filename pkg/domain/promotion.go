package domain

import (
	"fmt"
	"time"
)

type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"

	// The decision window elapsed with no decision.
	ApprovalTimedOut ApprovalState = "timed_out"
)

func (s ApprovalState) String() string {
	return string(s)
}

func AsApprovalState(s string) (ApprovalState, error) {
	switch s {
	case string(ApprovalPending):
		return ApprovalPending, nil
	case string(ApprovalApproved):
		return ApprovalApproved, nil
	case string(ApprovalRejected):
		return ApprovalRejected, nil
	case string(ApprovalTimedOut):
		return ApprovalTimedOut, nil
	default:
		return "", fmt.Errorf("'%s' is not ApprovalState", s)
	}
}

type PropagationState string

const (
	PropagationNotStarted PropagationState = "not_started"
	PropagationCopying    PropagationState = "copying"

	// The copy is visible in the shared registry.
	PropagationConfirmed PropagationState = "confirmed"

	// Visibility was never observed within the ceiling. The copy may
	// still land later; an operator must verify manually. Never rolled
	// back.
	PropagationTimedOut PropagationState = "timed_out"
)

func (s PropagationState) String() string {
	return string(s)
}

func AsPropagationState(s string) (PropagationState, error) {
	switch s {
	case string(PropagationNotStarted):
		return PropagationNotStarted, nil
	case string(PropagationCopying):
		return PropagationCopying, nil
	case string(PropagationConfirmed):
		return PropagationConfirmed, nil
	case string(PropagationTimedOut):
		return PropagationTimedOut, nil
	default:
		return "", fmt.Errorf("'%s' is not PropagationState", s)
	}
}

// PromotionRequest tracks one artifact's path into the shared registry.
//
// One per artifact, fully independent lifecycle: resolving one request
// has zero effect on any other's state.
type PromotionRequest struct {
	ID              string
	ArtifactName    string
	ArtifactVersion int

	Approval    ApprovalState
	Propagation PropagationState

	OpenedAt   time.Time
	ResolvedAt *time.Time
}
