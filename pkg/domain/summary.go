package domain

import "fmt"

// RunMode selects how the change selector picks units.
type RunMode string

const (
	// Compare lineage hashes against registered artifacts.
	RunModeAuto RunMode = "auto"

	// Train an operator-supplied unit list, bypassing comparison.
	RunModeManual RunMode = "manual"
)

func (m RunMode) String() string {
	return string(m)
}

func AsRunMode(s string) (RunMode, error) {
	switch s {
	case string(RunModeAuto):
		return RunModeAuto, nil
	case string(RunModeManual):
		return RunModeManual, nil
	default:
		return "", fmt.Errorf("'%s' is not RunMode (auto|manual)", s)
	}
}

// RunSummary is the outcome of one coordinator run.
//
// A run that trained/registered/promoted nothing because nothing
// changed has Submitted == 0 and empty Errors; a run that failed to do
// what it should have carries the errors. The two are never conflated.
type RunSummary struct {
	Submitted  int
	Completed  int
	Failed     int
	Retried    int
	Registered int
	Promoted   int

	// Errors carries per-unit detail of everything that went wrong,
	// fatal or not.
	Errors []string
}
