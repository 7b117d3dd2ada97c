package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Length of a lineage hash in hex characters.
//
// 12 hex chars = 48 bits. At realistic unit counts (hundreds),
// the birthday-bound collision chance is far below 1e-9.
const LineageHashLen = 12

// UnitConfig is the normalized training configuration of one unit
// (a plant+circuit combination).
//
// It is recomputed from the master parameter list on every run and is
// never persisted across runs; artifacts produced from it carry its
// LineageHash as a tag instead.
type UnitConfig struct {
	// PlantID and CircuitID identify the unit. UnitID() joins them.
	PlantID   string
	CircuitID string

	// CutoffDate bounds the training data window.
	CutoffDate string

	// ModelName is the artifact name models of this unit are registered under.
	ModelName string

	// Parameters holds everything else that affects training
	// (hyperparameters, features, data versions, ...).
	Parameters map[string]any
}

func (u UnitConfig) UnitID() string {
	return fmt.Sprintf("%s_%s", u.PlantID, u.CircuitID)
}

// LineageHash is the deterministic content fingerprint of this configuration.
//
// The canonical form is a YAML document with sorted map keys, holding
// every training-affecting field and nothing derived from them.
// Timestamps, descriptions and the hash itself never take part, so the
// fingerprint cannot be circular.
//
// Identical parameters give an identical hash on any machine at any time;
// two configurations canonicalizing identically are treated as equivalent
// and do not trigger a retrain.
func (u UnitConfig) LineageHash() (string, error) {
	canonical := map[string]any{
		"plant_id":    u.PlantID,
		"circuit_id":  u.CircuitID,
		"cutoff_date": u.CutoffDate,
		"model_name":  u.ModelName,
	}
	for k, v := range u.Parameters {
		canonical[k] = v
	}

	// yaml.v3 marshals map keys in sorted order, which makes the
	// serialization independent of insertion order.
	doc, err := yaml.Marshal(canonical)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(doc)
	return hex.EncodeToString(sum[:])[:LineageHashLen], nil
}
