package domain

import "fmt"

type JobStatus string

const (
	// The job is accepted by the execution service but not started.
	JobQueued JobStatus = "queued"

	// The job is running.
	JobRunning JobStatus = "running"

	// The job has finished successfully. Terminal.
	JobCompleted JobStatus = "completed"

	// The job has finished with an error. Terminal.
	JobFailed JobStatus = "failed"

	// The job was canceled before completion. Terminal.
	JobCanceled JobStatus = "canceled"
)

func (s JobStatus) String() string {
	return string(s)
}

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCanceled:
		return true
	default:
		return false
	}
}

func AsJobStatus(status string) (JobStatus, error) {
	switch status {
	case string(JobQueued):
		return JobQueued, nil
	case string(JobRunning):
		return JobRunning, nil
	case string(JobCompleted):
		return JobCompleted, nil
	case string(JobFailed):
		return JobFailed, nil
	case string(JobCanceled):
		return JobCanceled, nil
	default:
		return "", fmt.Errorf("'%s' is not JobStatus", status)
	}
}

// TrainingJob is one invocation of the execution service for one unit.
//
// Created by the submitter; its Status is mutated only by the monitor.
// Terminal statuses are final.
type TrainingJob struct {
	UnitID      string
	Handle      string
	Status      JobStatus
	LineageHash string

	// Retried is true when this job was submitted by the retry gate
	// after a failed original attempt.
	Retried bool

	// TimedOut is set by the monitor when the wait ceiling elapsed
	// while the job was still non-terminal. The remote job keeps
	// running; only the local bookkeeping gives it up.
	TimedOut bool
}
