package coordinator_test

import (
	"context"
	"testing"

	"github.com/opsline/trainyard/pkg/coordinator"
	"github.com/opsline/trainyard/pkg/domain"
	regmock "github.com/opsline/trainyard/pkg/domain/registry/mock"
	"github.com/opsline/trainyard/pkg/utils/try"
)

func TestResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("it finds the artifact matching the recomputed hash", func(t *testing.T) {
		unit := testUnits()[0]
		hash := try.To(unit.LineageHash()).OrFatal(t)

		shared := regmock.New()
		try.To(shared.CreateVersion(
			ctx, unit.ModelName, "job://job-1/model",
			map[string]string{domain.TagLineageHash: "aaaaaaaaaaaa"},
		)).OrFatal(t)
		expected := try.To(shared.CreateVersion(
			ctx, unit.ModelName, "job://job-2/model",
			map[string]string{domain.TagLineageHash: hash},
		)).OrFatal(t)

		resolver := &coordinator.Resolver{Target: shared}

		// any configuration canonicalizing to the same hash resolves
		// the same artifact, insertion order included
		same := unit
		same.Parameters = map[string]any{}
		for k, v := range unit.Parameters {
			same.Parameters[k] = v
		}

		for name, query := range map[string]domain.UnitConfig{
			"the original configuration": unit,
			"an equivalent copy":         same,
		} {
			t.Run(name, func(t *testing.T) {
				artifact, ok, err := resolver.Resolve(ctx, query)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					t.Fatal("no artifact resolved")
				}
				if artifact.Version != expected.Version {
					t.Errorf("wrong version resolved: %d", artifact.Version)
				}
			})
		}
	})

	t.Run("it picks the most recent of several matching versions", func(t *testing.T) {
		unit := testUnits()[0]
		hash := try.To(unit.LineageHash()).OrFatal(t)

		shared := regmock.New()
		for i := 0; i < 3; i += 1 {
			try.To(shared.CreateVersion(
				ctx, unit.ModelName, "job://rerun/model",
				map[string]string{domain.TagLineageHash: hash},
			)).OrFatal(t)
		}

		resolver := &coordinator.Resolver{Target: shared}
		artifact, ok, err := resolver.Resolve(ctx, unit)
		if err != nil || !ok {
			t.Fatalf("resolve failed: %v %v", ok, err)
		}
		if artifact.Version != 3 {
			t.Errorf("should resolve the most recent version: %d", artifact.Version)
		}
	})

	t.Run("a different configuration resolves nothing", func(t *testing.T) {
		unit := testUnits()[0]
		hash := try.To(unit.LineageHash()).OrFatal(t)

		shared := regmock.New()
		try.To(shared.CreateVersion(
			ctx, unit.ModelName, "job://job-1/model",
			map[string]string{domain.TagLineageHash: hash},
		)).OrFatal(t)

		changed := unit
		changed.CutoffDate = "2030-01-01"

		resolver := &coordinator.Resolver{Target: shared}
		_, ok, err := resolver.Resolve(ctx, changed)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("a non-matching configuration resolved an artifact")
		}
	})

	t.Run("nothing promoted yet means skip, not error", func(t *testing.T) {
		resolver := &coordinator.Resolver{Target: regmock.New()}
		_, ok, err := resolver.Resolve(ctx, testUnits()[0])
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("resolved an artifact from an empty registry")
		}
	})
}
