package coordinator

import (
	"time"

	"github.com/opsline/trainyard/pkg/domain"
)

func emit(sink domain.EventSink, unitID string, stage domain.Stage, state string) {
	if sink == nil {
		return
	}
	sink.Emit(domain.ProgressEvent{
		UnitID:    unitID,
		Stage:     stage,
		State:     state,
		Timestamp: time.Now(),
	})
}
