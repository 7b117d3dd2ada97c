package coordinator_test

import (
	"context"
	"errors"
	"log"
	"testing"

	"github.com/opsline/trainyard/pkg/coordinator"
	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/registry"
	regmock "github.com/opsline/trainyard/pkg/domain/registry/mock"
	"github.com/opsline/trainyard/pkg/utils/try"
)

func TestRegistrar(t *testing.T) {
	ctx := context.Background()

	units := testUnits()
	byID := map[string]domain.UnitConfig{}
	for _, u := range units {
		byID[u.UnitID()] = u
	}

	completedJobs := func(t *testing.T) []domain.TrainingJob {
		t.Helper()
		jobs := []domain.TrainingJob{}
		for _, u := range units {
			jobs = append(jobs, domain.TrainingJob{
				UnitID:      u.UnitID(),
				Handle:      "job-" + u.CircuitID,
				Status:      domain.JobCompleted,
				LineageHash: try.To(u.LineageHash()).OrFatal(t),
			})
		}
		return jobs
	}

	t.Run("it registers one tagged artifact version per completed job", func(t *testing.T) {
		store := regmock.New()
		reg := &coordinator.Registrar{
			Workspace: store, SuccessThreshold: 0.9, Logger: log.Default(),
		}

		jobs := completedJobs(t)
		jobs[1].Retried = true

		artifacts, failures, err := reg.Register(ctx, jobs, byID)
		if err != nil {
			t.Fatal(err)
		}
		if len(failures) != 0 {
			t.Errorf("unexpected failures: %v", failures)
		}
		if len(artifacts) != len(jobs) {
			t.Fatalf("unexpected artifact count: %d", len(artifacts))
		}

		for i, artifact := range artifacts {
			if artifact.Name != units[i].ModelName {
				t.Errorf("unexpected artifact name: %s", artifact.Name)
			}
			if artifact.Version != 1 {
				t.Errorf("first version should be 1: %d", artifact.Version)
			}
			if artifact.LineageHash() != jobs[i].LineageHash {
				t.Errorf("lineage hash tag missing or wrong: %v", artifact.Tags)
			}
			if artifact.OriginJob() != jobs[i].Handle {
				t.Errorf("origin job tag missing or wrong: %v", artifact.Tags)
			}
		}

		if artifacts[1].Tags[domain.TagRetried] != "true" {
			t.Errorf("retried job should carry the retry marker: %v", artifacts[1].Tags)
		}
		if _, ok := artifacts[0].Tags[domain.TagRetried]; ok {
			t.Errorf("non-retried job must not carry the retry marker: %v", artifacts[0].Tags)
		}
	})

	t.Run("registering the same lineage again allocates the next version", func(t *testing.T) {
		store := regmock.New()
		reg := &coordinator.Registrar{
			Workspace: store, SuccessThreshold: 0.9, Logger: log.Default(),
		}

		jobs := completedJobs(t)[:1]
		if _, _, err := reg.Register(ctx, jobs, byID); err != nil {
			t.Fatal(err)
		}

		jobs[0].Handle = "job-rerun"
		artifacts, _, err := reg.Register(ctx, jobs, byID)
		if err != nil {
			t.Fatal(err)
		}
		if artifacts[0].Version != 2 {
			t.Errorf("rerun should get version 2: %d", artifacts[0].Version)
		}
	})

	t.Run("a single failure is isolated when above the threshold", func(t *testing.T) {
		store := regmock.New()
		reg := &coordinator.Registrar{
			Workspace: store, SuccessThreshold: 0.5, Logger: log.Default(),
		}

		jobs := completedJobs(t)
		jobs = append(jobs, domain.TrainingJob{
			UnitID: "PLANT999_CIRCUIT99", Handle: "job-orphan", Status: domain.JobCompleted,
		})

		artifacts, failures, err := reg.Register(ctx, jobs, byID)
		if err != nil {
			t.Fatal(err)
		}
		if len(artifacts) != 3 {
			t.Errorf("the 3 known units should register: %d", len(artifacts))
		}
		if len(failures) != 1 {
			t.Errorf("the orphan should be reported: %v", failures)
		}
	})

	t.Run("success fraction below the threshold is a hard failure", func(t *testing.T) {
		store := regmock.New()
		store.Errors.CreateVersion = errors.New("store down")
		reg := &coordinator.Registrar{
			Workspace: store, SuccessThreshold: 0.9, Logger: log.Default(),
		}

		artifacts, failures, err := reg.Register(ctx, completedJobs(t), byID)
		if !errors.Is(err, coordinator.ErrBelowThreshold) {
			t.Errorf("expected ErrBelowThreshold, got: %v", err)
		}
		if len(artifacts) != 0 {
			t.Errorf("unexpected artifacts: %v", artifacts)
		}
		if len(failures) != 3 {
			t.Errorf("every unit's failure should be surfaced: %v", failures)
		}
	})

	t.Run("no completed jobs registers nothing without failing", func(t *testing.T) {
		reg := &coordinator.Registrar{
			Workspace: regmock.New(), SuccessThreshold: 0.9, Logger: log.Default(),
		}
		artifacts, failures, err := reg.Register(ctx, nil, byID)
		if err != nil {
			t.Fatal(err)
		}
		if len(artifacts) != 0 || len(failures) != 0 {
			t.Errorf("unexpected output: %v / %v", artifacts, failures)
		}
	})

	t.Run("registered artifacts are discoverable by lineage hash", func(t *testing.T) {
		store := regmock.New()
		reg := &coordinator.Registrar{
			Workspace: store, SuccessThreshold: 0.9, Logger: log.Default(),
		}
		jobs := completedJobs(t)
		if _, _, err := reg.Register(ctx, jobs, byID); err != nil {
			t.Fatal(err)
		}

		found := try.To(store.List(
			ctx, units[0].ModelName,
			registry.TagFilter{domain.TagLineageHash: jobs[0].LineageHash},
		)).OrFatal(t)
		if len(found) != 1 {
			t.Errorf("artifact not discoverable by hash: %v", found)
		}
	})
}
