package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/approval"
)

// RetryGate gives a human the chance to resubmit failed units.
//
// It opens a durable approval request and suspends on the decision. No
// decision within Timeout abandons retry for this run; the request row
// remains for the audit trail.
type RetryGate struct {
	Approvals approval.Interface
	Timeout   time.Duration

	Submitter *Submitter
	Monitor   *Monitor

	Logger *log.Logger
	Events domain.EventSink
}

// Run presents the failed jobs for review and, on approval, retrains
// exactly those units. Jobs that merely exceeded the wait ceiling are
// excluded: their original attempt has not terminated yet.
//
// Returns the completed retry jobs (marked Retried). Rejection and
// decision timeout return an empty set with nil error: retry is
// optional, skipping it is not a failure. A retry batch that aborts or
// completes nothing is an error, same as the primary batch.
func (g *RetryGate) Run(
	ctx context.Context,
	failed []domain.TrainingJob,
	units map[string]domain.UnitConfig,
) ([]domain.TrainingJob, error) {
	if len(failed) == 0 {
		return nil, nil
	}

	// a timed-out job is still running remotely; resubmitting its unit
	// now would train it twice in parallel. Those units wait for manual
	// follow-up once the original attempt settles.
	retryable := make([]domain.TrainingJob, 0, len(failed))
	for _, job := range failed {
		if job.TimedOut {
			g.Logger.Printf(
				"unit %s exceeded the wait ceiling but job %s is still %s; not eligible for retry",
				job.UnitID, job.Handle, job.Status,
			)
			emit(g.Events, job.UnitID, domain.StageRetry, "ineligible")
			continue
		}
		retryable = append(retryable, job)
	}
	if len(retryable) == 0 {
		return nil, nil
	}

	failedIDs := make([]string, 0, len(retryable))
	summary := map[string]string{
		"failed_count": fmt.Sprintf("%d", len(retryable)),
	}
	for _, job := range retryable {
		failedIDs = append(failedIDs, job.UnitID)
		summary["unit:"+job.UnitID] = job.Status.String()
	}

	req, err := g.Approvals.Open(
		ctx, approval.KindRetry,
		"retry "+strings.Join(failedIDs, ", "),
		summary,
	)
	if err != nil {
		return nil, err
	}
	g.Logger.Printf(
		"opened retry approval %s for %d failed unit(s); waiting up to %v",
		req.ID, len(retryable), g.Timeout,
	)

	decision, err := g.Approvals.Await(ctx, req.ID, g.Timeout)
	if err != nil {
		return nil, err
	}
	switch decision {
	case domain.ApprovalApproved:
		// fall through to resubmission
	case domain.ApprovalRejected:
		g.Logger.Printf("retry approval %s rejected; leaving failed units as they are", req.ID)
		g.emitAll(failedIDs, "rejected")
		return nil, nil
	default:
		g.Logger.Printf("retry approval %s got no decision within %v; abandoning retry", req.ID, g.Timeout)
		g.emitAll(failedIDs, "abandoned")
		return nil, nil
	}

	retryUnits := make([]domain.UnitConfig, 0, len(retryable))
	for _, id := range failedIDs {
		unit, ok := units[id]
		if !ok {
			// failed jobs always come from this run's selection
			return nil, fmt.Errorf("failed unit %s is not in this run's selection", id)
		}
		retryUnits = append(retryUnits, unit)
	}
	g.emitAll(failedIDs, "approved")

	jobs, err := g.Submitter.Submit(ctx, retryUnits, true)
	if err != nil {
		return nil, err
	}

	completed, stillFailed, err := g.Monitor.Wait(ctx, jobs)
	if errors.Is(err, ErrNoCompletions) {
		// every retry failed again; the units stay failed, the run goes on
		// with the completions it already has
		g.Logger.Printf("no retry completed; keeping the original completed set only")
		err = nil
	}
	if err != nil {
		return nil, err
	}
	for _, job := range stillFailed {
		g.Logger.Printf("retry of unit %s failed again (job %s, %s)", job.UnitID, job.Handle, job.Status)
	}
	return completed, nil
}

func (g *RetryGate) emitAll(unitIDs []string, state string) {
	for _, id := range unitIDs {
		emit(g.Events, id, domain.StageRetry, state)
	}
}
