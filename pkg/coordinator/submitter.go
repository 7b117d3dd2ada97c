package coordinator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/exec"
	xe "github.com/opsline/trainyard/pkg/errors"
	"github.com/opsline/trainyard/pkg/utils/retry"
)

type Submitter struct {
	Exec exec.Interface

	// MaxInFlight caps concurrent submissions. This is the only
	// admission control on the execution service.
	MaxInFlight int

	// RetryInterval is the base wait between submission attempts;
	// the N-th retry waits N times this.
	RetryInterval time.Duration

	// MaxRetries bounds retries after the first attempt.
	MaxRetries int

	Logger *log.Logger
	Events domain.EventSink
}

// Submit starts one training job per unit, at most MaxInFlight at a time.
//
// Submission failures are retried per job; if any job still cannot be
// submitted, every job already submitted in this batch is canceled and
// the whole batch aborts. Later stages treat the batch as one
// consistency unit, so a partially submitted batch must not survive.
//
// retried marks every job of the batch as a retry attempt.
func (s *Submitter) Submit(
	ctx context.Context, units []domain.UnitConfig, retried bool,
) ([]domain.TrainingJob, error) {
	type outcome struct {
		job domain.TrainingJob
		err error
	}

	sem := make(chan struct{}, s.MaxInFlight)
	outcomes := make([]outcome, len(units))

	wg := sync.WaitGroup{}
	for i, unit := range units {
		wg.Add(1)
		go func(i int, unit domain.UnitConfig) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			job, err := s.submitOne(ctx, unit, retried)
			outcomes[i] = outcome{job: job, err: err}
		}(i, unit)
	}
	wg.Wait()

	jobs := []domain.TrainingJob{}
	var firstErr error
	for i, o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = xe.WrapWithNote(
					"submission failed for unit "+units[i].UnitID(), o.err,
				)
			}
			continue
		}
		jobs = append(jobs, o.job)
	}

	if firstErr != nil {
		s.cancelAll(ctx, jobs)
		return nil, firstErr
	}
	return jobs, nil
}

func (s *Submitter) submitOne(
	ctx context.Context, unit domain.UnitConfig, retried bool,
) (domain.TrainingJob, error) {
	hash, err := unit.LineageHash()
	if err != nil {
		return domain.TrainingJob{}, err
	}

	spec := exec.Spec{
		UnitID:      unit.UnitID(),
		LineageHash: hash,
		Parameters:  trainerParameters(unit),
	}

	attempt := 0
	handle, err := retry.Blocking(
		ctx,
		skipFirst(retry.LinearBackoff(s.RetryInterval)),
		func() (string, error) {
			attempt += 1
			// each attempt gets a fresh timestamped name: remote jobs
			// from earlier attempts or earlier runs of the same unit
			// are not deleted, and a name reuse would collide with them
			spec.JobName = strings.ToLower(fmt.Sprintf(
				"train-%s-%s-%d", unit.UnitID(), hash, time.Now().UnixNano(),
			))
			handle, err := s.Exec.Submit(ctx, spec)
			if err == nil {
				return handle, nil
			}
			if attempt <= s.MaxRetries {
				s.Logger.Printf(
					"submission attempt %d for unit %s failed (will retry): %v",
					attempt, unit.UnitID(), err,
				)
				return "", fmt.Errorf("%w: %s", retry.ErrRetry, err)
			}
			return "", err
		},
	)
	if err != nil {
		emit(s.Events, unit.UnitID(), domain.StageSubmit, "failed")
		return domain.TrainingJob{}, err
	}

	emit(s.Events, unit.UnitID(), domain.StageSubmit, "submitted")
	return domain.TrainingJob{
		UnitID:      unit.UnitID(),
		Handle:      handle,
		Status:      domain.JobQueued,
		LineageHash: hash,
		Retried:     retried,
	}, nil
}

func (s *Submitter) cancelAll(ctx context.Context, jobs []domain.TrainingJob) {
	for _, job := range jobs {
		if err := s.Exec.Cancel(ctx, job.Handle); err != nil {
			s.Logger.Printf(
				"failed to cancel job %s (unit %s) while aborting batch: %v",
				job.Handle, job.UnitID, err,
			)
			continue
		}
		s.Logger.Printf("canceled job %s (unit %s): batch aborted", job.Handle, job.UnitID)
	}
}

// trainerParameters flattens a unit configuration into the string
// key/values the trainer receives.
func trainerParameters(unit domain.UnitConfig) map[string]string {
	params := map[string]string{
		"plant_id":    unit.PlantID,
		"circuit_id":  unit.CircuitID,
		"cutoff_date": unit.CutoffDate,
		"model_name":  unit.ModelName,
	}
	for k, v := range unit.Parameters {
		params[k] = fmt.Sprintf("%v", v)
	}
	return params
}

// skipFirst lets the first attempt go immediately; only retries back off.
func skipFirst(b retry.Backoff) retry.Backoff {
	first := true
	return func(ctx context.Context) error {
		if first {
			first = false
			return nil
		}
		return b(ctx)
	}
}
