package domain

import "time"

type Stage string

const (
	StageSelect   Stage = "select"
	StageSubmit   Stage = "submit"
	StageMonitor  Stage = "monitor"
	StageRetry    Stage = "retry"
	StageRegister Stage = "register"
	StagePromote  Stage = "promote"
)

func (s Stage) String() string {
	return string(s)
}

// ProgressEvent is emitted once per unit per stage transition,
// for external dashboards. It has no control-flow effect.
type ProgressEvent struct {
	UnitID    string
	Stage     Stage
	State     string
	Timestamp time.Time
}

// EventSink receives progress events. Emit must not block for long;
// the coordinator calls it inline.
type EventSink interface {
	Emit(ProgressEvent)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ProgressEvent)

func (f EventSinkFunc) Emit(ev ProgressEvent) {
	f(ev)
}

// NullSink drops every event.
func NullSink() EventSink {
	return EventSinkFunc(func(ProgressEvent) {})
}
