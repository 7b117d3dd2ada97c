package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/exec"
	"github.com/opsline/trainyard/pkg/loop"
)

// ErrNoCompletions means a non-empty batch finished with zero completed
// jobs. That is a run-level failure: something systemic is wrong with
// training or the execution service, and it must not pass as "nothing
// to do".
var ErrNoCompletions = errors.New("no job in the batch completed")

type Monitor struct {
	Exec exec.Interface

	// Polling starts at InitialInterval and doubles up to MaxInterval.
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Timeout is the total-wait ceiling. Jobs still non-terminal when
	// it elapses are left running remotely and marked timed-out locally.
	Timeout time.Duration

	// NoticeInterval paces still-running log notices. Awareness only.
	NoticeInterval time.Duration

	Logger *log.Logger
	Events domain.EventSink
}

// Wait polls every outstanding handle in one loop until all jobs are
// terminal or the ceiling elapses, then partitions the batch.
//
// failed contains failed and canceled jobs plus locally timed-out ones
// (distinguishable by TrainingJob.TimedOut). err is ErrNoCompletions
// when a non-empty batch completed nothing.
func (m *Monitor) Wait(
	ctx context.Context, jobs []domain.TrainingJob,
) (completed []domain.TrainingJob, failed []domain.TrainingJob, err error) {
	pending := make([]domain.TrainingJob, len(jobs))
	copy(pending, jobs)

	deadline := time.Now().Add(m.Timeout)
	lastNotice := time.Now()
	interval := m.InitialInterval

	pending, lerr := loop.Start(ctx, pending, func(
		ctx context.Context, jobs []domain.TrainingJob,
	) ([]domain.TrainingJob, loop.Next) {
		outstanding := 0
		for i := range jobs {
			if jobs[i].Status.IsTerminal() {
				continue
			}

			status, err := m.Exec.Status(ctx, jobs[i].Handle)
			if err != nil {
				if errors.Is(err, exec.ErrMissing) {
					// the service lost the job; nothing further to wait for
					m.Logger.Printf(
						"job %s (unit %s) is unknown to the execution service; treating as failed",
						jobs[i].Handle, jobs[i].UnitID,
					)
					jobs[i].Status = domain.JobFailed
					m.emitStatus(jobs[i])
					continue
				}
				return jobs, loop.Break(err)
			}

			if status != jobs[i].Status {
				jobs[i].Status = status
				m.emitStatus(jobs[i])
			}
			if !status.IsTerminal() {
				outstanding += 1
			}
		}

		if outstanding == 0 {
			return jobs, loop.Break(nil)
		}

		if time.Now().After(deadline) {
			for i := range jobs {
				if jobs[i].Status.IsTerminal() {
					continue
				}
				jobs[i].TimedOut = true
				m.Logger.Printf(
					"job %s (unit %s) still %s after %v; giving it up locally (job keeps running remotely)",
					jobs[i].Handle, jobs[i].UnitID, jobs[i].Status, m.Timeout,
				)
				emit(m.Events, jobs[i].UnitID, domain.StageMonitor, "timed_out")
			}
			return jobs, loop.Break(nil)
		}

		if m.NoticeInterval < time.Since(lastNotice) {
			m.Logger.Printf("still waiting for %d job(s)", outstanding)
			lastNotice = time.Now()
		}

		next := interval
		interval *= 2
		if m.MaxInterval < interval {
			interval = m.MaxInterval
		}
		return jobs, loop.Continue(next)
	})
	if lerr != nil {
		return nil, nil, lerr
	}

	for _, job := range pending {
		if job.Status == domain.JobCompleted {
			completed = append(completed, job)
		} else {
			failed = append(failed, job)
		}
	}

	if 0 < len(jobs) && len(completed) == 0 {
		return completed, failed, ErrNoCompletions
	}
	return completed, failed, nil
}

func (m *Monitor) emitStatus(job domain.TrainingJob) {
	emit(m.Events, job.UnitID, domain.StageMonitor, job.Status.String())
}
