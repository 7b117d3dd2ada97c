package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/approval"
	"github.com/opsline/trainyard/pkg/domain/promotion"
	"github.com/opsline/trainyard/pkg/domain/registry"
	"github.com/opsline/trainyard/pkg/utils/retry"
)

// Promoter carries registered artifacts into the shared registry, one
// independent request per artifact.
//
// Every request runs in its own goroutine and suspends on its own
// approval; resolving one has zero effect on any other, which is what
// allows staggered per-unit rollout.
type Promoter struct {
	Requests  promotion.Interface
	Approvals approval.Interface

	// Registry is the shared registry artifacts are copied into.
	Registry registry.Interface

	ApprovalTimeout time.Duration

	// Replication into the shared registry is asynchronous; a copied
	// artifact becomes visible only after some lag. Visibility is
	// polled on this schedule.
	VisibilityInitialInterval time.Duration
	VisibilityMaxInterval     time.Duration
	VisibilityTimeout         time.Duration

	Logger *log.Logger
	Events domain.EventSink
}

// PromoteAll opens one promotion request per artifact and drives each
// to resolution concurrently.
//
// promoted counts requests that reached Confirmed. Rejections are not
// failures; propagation timeouts and store errors are collected into
// failures (reported, never rolled back).
func (p *Promoter) PromoteAll(
	ctx context.Context, artifacts []domain.Artifact,
) (promoted int, failures []string) {
	promises := make([]retry.Promise[domain.PropagationState], len(artifacts))
	for i, artifact := range artifacts {
		artifact := artifact
		promises[i] = retry.Go(
			ctx, retry.StaticBackoff(0),
			func() (domain.PropagationState, error) {
				return p.promoteOne(ctx, artifact)
			},
		)
	}

	for i, promise := range promises {
		result := <-promise
		name := fmt.Sprintf("%s v%d", artifacts[i].Name, artifacts[i].Version)
		switch {
		case result.Err != nil:
			failures = append(failures, fmt.Sprintf("promotion of %s: %v", name, result.Err))
		case result.Value == domain.PropagationConfirmed:
			promoted += 1
		case result.Value == domain.PropagationTimedOut:
			failures = append(failures, fmt.Sprintf(
				"promotion of %s: copy not visible within %v; verify manually",
				name, p.VisibilityTimeout,
			))
		}
	}
	return promoted, failures
}

// promoteOne resolves one request: await approval, copy, confirm
// visibility.
//
// Returns PropagationNotStarted when the request ends without an
// approved copy (rejected or decision timed out).
func (p *Promoter) promoteOne(
	ctx context.Context, artifact domain.Artifact,
) (domain.PropagationState, error) {
	unitID := artifact.UnitID()

	req, err := p.Requests.Open(ctx, artifact)
	if err != nil {
		return domain.PropagationNotStarted, err
	}
	if req.Propagation == domain.PropagationConfirmed {
		// resolved by an earlier run
		emit(p.Events, unitID, domain.StagePromote, "confirmed")
		return domain.PropagationConfirmed, nil
	}

	approved, err := p.ensureApproved(ctx, req, artifact)
	if err != nil {
		return domain.PropagationNotStarted, err
	}
	if !approved {
		return domain.PropagationNotStarted, nil
	}

	if err := p.Requests.SetPropagation(ctx, req.ID, domain.PropagationCopying); err != nil {
		return domain.PropagationNotStarted, err
	}
	emit(p.Events, unitID, domain.StagePromote, "copying")

	copied := artifact
	copied.Tags = map[string]string{}
	for k, v := range artifact.Tags {
		copied.Tags[k] = v
	}
	copied.Tags[domain.TagPromotedFrom] = artifact.Location

	if err := p.Registry.Put(ctx, copied); err != nil {
		if !errors.Is(err, registry.ErrAlreadyExists) {
			return domain.PropagationCopying, err
		}
		// an earlier (interrupted) run copied it already. The copy is
		// what matters, not who made it; go on to confirm visibility.
		p.Logger.Printf(
			"artifact %s v%d already exists in the shared registry; skipping copy",
			artifact.Name, artifact.Version,
		)
	}

	state, err := p.confirmVisibility(ctx, artifact)
	if err != nil {
		return domain.PropagationCopying, err
	}
	if err := p.Requests.SetPropagation(ctx, req.ID, state); err != nil {
		return state, err
	}

	switch state {
	case domain.PropagationConfirmed:
		emit(p.Events, unitID, domain.StagePromote, "confirmed")
	case domain.PropagationTimedOut:
		emit(p.Events, unitID, domain.StagePromote, "propagation_timed_out")
	}
	return state, nil
}

// ensureApproved drives the request's approval state to a decision,
// reusing a decision made by an earlier run when there is one.
func (p *Promoter) ensureApproved(
	ctx context.Context, req domain.PromotionRequest, artifact domain.Artifact,
) (bool, error) {
	unitID := artifact.UnitID()

	switch req.Approval {
	case domain.ApprovalApproved:
		return true, nil
	case domain.ApprovalRejected, domain.ApprovalTimedOut:
		return false, nil
	}

	summary := map[string]string{
		"artifact": artifact.Name,
		"version":  fmt.Sprintf("%d", artifact.Version),
		"location": artifact.Location,
	}
	for k, v := range artifact.Tags {
		summary["tag:"+k] = v
	}

	areq, err := p.Approvals.Open(
		ctx, approval.KindPromotion,
		fmt.Sprintf("promote %s v%d", artifact.Name, artifact.Version),
		summary,
	)
	if err != nil {
		return false, err
	}
	emit(p.Events, unitID, domain.StagePromote, "requested")
	p.Logger.Printf(
		"opened promotion approval %s for %s v%d; waiting up to %v",
		areq.ID, artifact.Name, artifact.Version, p.ApprovalTimeout,
	)

	decision, err := p.Approvals.Await(ctx, areq.ID, p.ApprovalTimeout)
	if err != nil {
		return false, err
	}
	if err := p.Requests.SetApproval(ctx, req.ID, decision); err != nil {
		return false, err
	}

	switch decision {
	case domain.ApprovalApproved:
		emit(p.Events, unitID, domain.StagePromote, "approved")
		return true, nil
	case domain.ApprovalRejected:
		emit(p.Events, unitID, domain.StagePromote, "rejected")
	default:
		emit(p.Events, unitID, domain.StagePromote, "approval_timed_out")
	}
	return false, nil
}

// confirmVisibility polls the shared registry until the copied version
// can be read back, or the ceiling elapses.
func (p *Promoter) confirmVisibility(
	ctx context.Context, artifact domain.Artifact,
) (domain.PropagationState, error) {
	wctx, cancel := context.WithTimeout(ctx, p.VisibilityTimeout)
	defer cancel()

	_, err := retry.Blocking(
		wctx,
		retry.ExponentialBackoff(p.VisibilityInitialInterval, 2, p.VisibilityMaxInterval),
		func() (domain.Artifact, error) {
			got, err := p.Registry.Get(ctx, artifact.Name, artifact.Version)
			if errors.Is(err, registry.ErrNotFound) {
				return domain.Artifact{}, fmt.Errorf("%w: not visible yet", retry.ErrRetry)
			}
			return got, err
		},
	)
	if err == nil {
		return domain.PropagationConfirmed, nil
	}
	if wctx.Err() != nil && ctx.Err() == nil {
		return domain.PropagationTimedOut, nil
	}
	return domain.PropagationCopying, err
}
