package coordinator

import (
	"context"
	"errors"
	"log"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/registry"
	xe "github.com/opsline/trainyard/pkg/errors"
)

// ErrNoBaseline means the workspace store holds no artifact at all, so
// auto mode has nothing to compare against. Training everything on an
// empty store is allowed only by explicit opt-in; an empty store is
// also what a wiped or misconfigured store looks like.
var ErrNoBaseline = errors.New(
	"no baseline artifacts exist; pass the first-run opt-in or run in manual mode",
)

type Selector struct {
	Workspace registry.Interface

	// TrainAllOnFirstRun permits auto mode to select every unit when
	// the workspace store is empty.
	TrainAllOnFirstRun bool

	Logger *log.Logger
	Events domain.EventSink
}

// Select decides which units train this run.
//
// Auto mode selects each unit whose current lineage hash has no
// registered artifact. Manual mode selects exactly the ids given,
// failing fast on ids the master list does not know.
func (s *Selector) Select(
	ctx context.Context,
	units []domain.UnitConfig,
	mode domain.RunMode,
	manualUnitIDs []string,
) ([]domain.UnitConfig, error) {
	switch mode {
	case domain.RunModeManual:
		return s.selectManual(units, manualUnitIDs)
	case domain.RunModeAuto:
		return s.selectAuto(ctx, units)
	default:
		return nil, xe.New("unknown run mode: " + mode.String())
	}
}

func (s *Selector) selectManual(
	units []domain.UnitConfig, manualUnitIDs []string,
) ([]domain.UnitConfig, error) {
	index := map[string]domain.UnitConfig{}
	for _, u := range units {
		index[u.UnitID()] = u
	}

	selected := []domain.UnitConfig{}
	for _, id := range manualUnitIDs {
		unit, ok := index[id]
		if !ok {
			return nil, xe.New("unknown unit id: " + id)
		}
		selected = append(selected, unit)
		s.emit(unit.UnitID(), "selected")
	}
	return selected, nil
}

func (s *Selector) selectAuto(
	ctx context.Context, units []domain.UnitConfig,
) ([]domain.UnitConfig, error) {
	empty, err := s.Workspace.Empty(ctx)
	if err != nil {
		return nil, err
	}
	if empty {
		if !s.TrainAllOnFirstRun {
			return nil, ErrNoBaseline
		}
		s.Logger.Printf(
			"workspace store is empty; first-run opt-in is set, selecting all %d units",
			len(units),
		)
		for _, u := range units {
			s.emit(u.UnitID(), "selected")
		}
		return units, nil
	}

	selected := []domain.UnitConfig{}
	unchanged := 0
	for _, unit := range units {
		hash, err := unit.LineageHash()
		if err != nil {
			return nil, err
		}

		matching, err := s.Workspace.List(
			ctx, unit.ModelName, registry.TagFilter{domain.TagLineageHash: hash},
		)
		if err != nil {
			return nil, err
		}

		if len(matching) == 0 {
			selected = append(selected, unit)
			s.emit(unit.UnitID(), "selected")
		} else {
			unchanged += 1
			s.emit(unit.UnitID(), "unchanged")
		}
	}

	s.Logger.Printf(
		"change detection: %d selected, %d unchanged (of %d units)",
		len(selected), unchanged, len(units),
	)
	return selected, nil
}

func (s *Selector) emit(unitID string, state string) {
	emit(s.Events, unitID, domain.StageSelect, state)
}
