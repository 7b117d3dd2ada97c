package domain

import "time"

// Well-known artifact tag keys.
//
// Tags are how temporally decoupled runs agree on artifacts: nothing
// ever passes an artifact reference around, consumers look versions up
// by these tags instead.
const (
	TagPlantID      = "plant_id"
	TagCircuitID    = "circuit_id"
	TagCutoffDate   = "cutoff_date"
	TagLineageHash  = "lineage_hash"
	TagOriginJob    = "origin_job"
	TagRetried      = "retried"
	TagPromotedFrom = "promoted_from"
)

// Artifact is the versioned output of one completed training job.
//
// Created once per completed job and immutable thereafter. Multiple
// versions may share a lineage hash (idempotent reruns); consumers
// select the most recent matching version.
type Artifact struct {
	// Name of the artifact. Versions are monotonic per name.
	Name    string
	Version int

	// Location points at the payload (a job output URI); the store
	// indexes it but never dereferences it.
	Location string

	Tags      map[string]string
	CreatedAt time.Time
}

func (a Artifact) LineageHash() string {
	return a.Tags[TagLineageHash]
}

func (a Artifact) UnitID() string {
	return a.Tags[TagPlantID] + "_" + a.Tags[TagCircuitID]
}

func (a Artifact) OriginJob() string {
	return a.Tags[TagOriginJob]
}
