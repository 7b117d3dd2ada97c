package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/registry"
)

// ErrBelowThreshold means too large a fraction of registrations failed.
// Scattered per-unit failures are tolerated; a failure rate above the
// threshold points at the registrar or the store itself and fails the
// run outright instead of being masked as unrelated unit issues.
var ErrBelowThreshold = errors.New("registration success fraction below threshold")

type Registrar struct {
	Workspace registry.Interface

	// SuccessThreshold is the minimum fraction of attempted
	// registrations that must succeed.
	SuccessThreshold float64

	Logger *log.Logger
	Events domain.EventSink
}

// Register creates one artifact version per completed job.
//
// Per-unit failures are isolated: they are collected into failures and
// never block other units. err is ErrBelowThreshold when the success
// fraction among attempted registrations falls below the configured
// minimum.
func (r *Registrar) Register(
	ctx context.Context,
	jobs []domain.TrainingJob,
	units map[string]domain.UnitConfig,
) (artifacts []domain.Artifact, failures []string, err error) {
	for _, job := range jobs {
		artifact, err := r.registerOne(ctx, job, units)
		if err != nil {
			failures = append(failures, fmt.Sprintf("unit %s: %v", job.UnitID, err))
			r.Logger.Printf("registration of unit %s failed: %v", job.UnitID, err)
			emit(r.Events, job.UnitID, domain.StageRegister, "failed")
			continue
		}
		artifacts = append(artifacts, artifact)
		emit(r.Events, job.UnitID, domain.StageRegister, "registered")
	}

	attempted := len(jobs)
	if 0 < attempted {
		fraction := float64(len(artifacts)) / float64(attempted)
		if fraction < r.SuccessThreshold {
			r.Logger.Printf(
				"only %d of %d registrations succeeded (%.0f%% < %.0f%% threshold)",
				len(artifacts), attempted, fraction*100, r.SuccessThreshold*100,
			)
			return artifacts, failures, ErrBelowThreshold
		}
	}
	return artifacts, failures, nil
}

func (r *Registrar) registerOne(
	ctx context.Context, job domain.TrainingJob, units map[string]domain.UnitConfig,
) (domain.Artifact, error) {
	unit, ok := units[job.UnitID]
	if !ok {
		return domain.Artifact{}, fmt.Errorf("completed unit %s is not in this run's selection", job.UnitID)
	}

	tags := map[string]string{
		domain.TagPlantID:     unit.PlantID,
		domain.TagCircuitID:   unit.CircuitID,
		domain.TagCutoffDate:  unit.CutoffDate,
		domain.TagLineageHash: job.LineageHash,
		domain.TagOriginJob:   job.Handle,
	}
	if job.Retried {
		tags[domain.TagRetried] = "true"
	}

	return r.Workspace.CreateVersion(
		ctx, unit.ModelName, jobOutputLocation(job), tags,
	)
}

// jobOutputLocation is where the trainer leaves the model payload for
// the given job. The store indexes the location, it never reads it.
func jobOutputLocation(job domain.TrainingJob) string {
	return fmt.Sprintf("job://%s/model", job.Handle)
}
