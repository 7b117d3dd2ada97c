package coordinator

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opsline/trainyard/pkg/domain"
	xe "github.com/opsline/trainyard/pkg/errors"
)

// The master parameter list names every trainable unit once, with
// shared values hoisted into `defaults`.
//
//	defaults:
//	  cutoff_date: "2025-12-11"
//	  parameters:
//	    algorithm: lightgbm
//	circuits:
//	  - plant_id: PLANT001
//	    circuit_id: CIRCUIT01
//	    parameters:
//	      max_depth: 8
//	    metadata:
//	      owner: team-a     # ignored for lineage
type masterList struct {
	Defaults masterDefaults `yaml:"defaults"`
	Circuits []masterEntry  `yaml:"circuits"`
}

type masterDefaults struct {
	CutoffDate string         `yaml:"cutoff_date"`
	Parameters map[string]any `yaml:"parameters"`
}

type masterEntry struct {
	PlantID    string         `yaml:"plant_id"`
	CircuitID  string         `yaml:"circuit_id"`
	ModelName  string         `yaml:"model_name"`
	CutoffDate string         `yaml:"cutoff_date"`
	Parameters map[string]any `yaml:"parameters"`

	// Metadata is free-form annotation (owners, descriptions, edit
	// timestamps). It never reaches the lineage hash.
	Metadata map[string]any `yaml:"metadata"`
}

// LoadMasterList reads a master parameter list file and materializes it.
func LoadMasterList(filepath string) ([]domain.UnitConfig, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return Materialize(content)
}

// Materialize expands a master parameter list into one normalized
// UnitConfig per unit.
//
// Entry parameters overlay defaults key by key. `metadata` is dropped.
// Duplicate unit ids and entries missing plant or circuit id are
// errors: a master list that cannot name its units unambiguously
// cannot be trained from.
func Materialize(doc []byte) ([]domain.UnitConfig, error) {
	list := masterList{}
	if err := yaml.Unmarshal(doc, &list); err != nil {
		return nil, xe.Wrap(err)
	}

	units := []domain.UnitConfig{}
	seen := map[string]bool{}
	for _, entry := range list.Circuits {
		if entry.PlantID == "" || entry.CircuitID == "" {
			return nil, xe.New("master list entry without plant_id or circuit_id")
		}

		params := map[string]any{}
		for k, v := range list.Defaults.Parameters {
			params[k] = v
		}
		for k, v := range entry.Parameters {
			params[k] = v
		}
		delete(params, "metadata")

		cutoff := entry.CutoffDate
		if cutoff == "" {
			cutoff = list.Defaults.CutoffDate
		}

		unit := domain.UnitConfig{
			PlantID:    entry.PlantID,
			CircuitID:  entry.CircuitID,
			CutoffDate: cutoff,
			ModelName:  entry.ModelName,
			Parameters: params,
		}
		if unit.ModelName == "" {
			unit.ModelName = unit.UnitID()
		}

		if seen[unit.UnitID()] {
			return nil, xe.New("duplicate unit in master list: " + unit.UnitID())
		}
		seen[unit.UnitID()] = true

		units = append(units, unit)
	}
	return units, nil
}
