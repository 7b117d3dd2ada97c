package coordinator_test

import (
	"testing"

	"github.com/opsline/trainyard/pkg/coordinator"
	"github.com/opsline/trainyard/pkg/utils/cmp"
	"github.com/opsline/trainyard/pkg/utils/try"
)

func TestMaterialize(t *testing.T) {
	t.Run("it expands the master list into one unit per circuit", func(t *testing.T) {
		units := try.To(coordinator.Materialize([]byte(`
defaults:
  cutoff_date: "2025-12-11"
  parameters:
    algorithm: lightgbm
    max_depth: 8
circuits:
  - plant_id: PLANT001
    circuit_id: CIRCUIT01
  - plant_id: PLANT001
    circuit_id: CIRCUIT02
    cutoff_date: "2026-01-15"
    parameters:
      max_depth: 12
  - plant_id: PLANT002
    circuit_id: CIRCUIT01
    model_name: special-model
    metadata:
      owner: team-a
`))).OrFatal(t)

		if len(units) != 3 {
			t.Fatalf("unexpected unit count: %d", len(units))
		}

		t.Run("defaults apply when the entry is silent", func(t *testing.T) {
			unit := units[0]
			if unit.UnitID() != "PLANT001_CIRCUIT01" {
				t.Errorf("unexpected unit id: %s", unit.UnitID())
			}
			if unit.CutoffDate != "2025-12-11" {
				t.Errorf("default cutoff date not applied: %s", unit.CutoffDate)
			}
			if unit.ModelName != "PLANT001_CIRCUIT01" {
				t.Errorf("model name should default to the unit id: %s", unit.ModelName)
			}
			if unit.Parameters["max_depth"] != 8 {
				t.Errorf("default parameter not applied: %v", unit.Parameters["max_depth"])
			}
		})

		t.Run("entry values overlay defaults", func(t *testing.T) {
			unit := units[1]
			if unit.CutoffDate != "2026-01-15" {
				t.Errorf("entry cutoff date not taken: %s", unit.CutoffDate)
			}
			if !cmp.MapEqWith(
				unit.Parameters,
				map[string]any{"algorithm": "lightgbm", "max_depth": 12},
				func(a, b any) bool { return a == b },
			) {
				t.Errorf("unexpected parameters: %v", unit.Parameters)
			}
		})

		t.Run("explicit model name and no metadata leakage", func(t *testing.T) {
			unit := units[2]
			if unit.ModelName != "special-model" {
				t.Errorf("unexpected model name: %s", unit.ModelName)
			}
			if _, ok := unit.Parameters["metadata"]; ok {
				t.Error("metadata leaked into parameters")
			}
		})
	})

	t.Run("metadata does not change the lineage hash", func(t *testing.T) {
		bare := try.To(coordinator.Materialize([]byte(`
circuits:
  - plant_id: PLANT001
    circuit_id: CIRCUIT01
    cutoff_date: "2025-12-11"
`))).OrFatal(t)
		annotated := try.To(coordinator.Materialize([]byte(`
circuits:
  - plant_id: PLANT001
    circuit_id: CIRCUIT01
    cutoff_date: "2025-12-11"
    metadata:
      owner: team-a
      edited_at: "2026-08-27T10:00:00Z"
`))).OrFatal(t)

		hb := try.To(bare[0].LineageHash()).OrFatal(t)
		ha := try.To(annotated[0].LineageHash()).OrFatal(t)
		if hb != ha {
			t.Errorf("metadata changed the hash: %s != %s", hb, ha)
		}
	})

	t.Run("it rejects duplicate units", func(t *testing.T) {
		_, err := coordinator.Materialize([]byte(`
circuits:
  - plant_id: PLANT001
    circuit_id: CIRCUIT01
  - plant_id: PLANT001
    circuit_id: CIRCUIT01
`))
		if err == nil {
			t.Error("duplicate unit was accepted")
		}
	})

	t.Run("it rejects entries without plant or circuit id", func(t *testing.T) {
		_, err := coordinator.Materialize([]byte(`
circuits:
  - plant_id: PLANT001
`))
		if err == nil {
			t.Error("entry without circuit_id was accepted")
		}
	})
}
