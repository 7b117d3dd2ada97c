package coordinator

import (
	"context"
	"log"

	kconf "github.com/opsline/trainyard/pkg/configs/coordinator"
	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/approval"
	"github.com/opsline/trainyard/pkg/domain/exec"
	"github.com/opsline/trainyard/pkg/domain/promotion"
	"github.com/opsline/trainyard/pkg/domain/registry"
)

// Coordinator runs one training-and-promotion pass over the unit fleet.
//
// It is invoked as a library by an external scheduler; one Run is one
// scheduled pass, there is no daemon loop in here.
type Coordinator struct {
	selector  *Selector
	submitter *Submitter
	monitor   *Monitor
	retryGate *RetryGate
	registrar *Registrar
	promoter  *Promoter

	logger *log.Logger
}

func New(
	conf *kconf.CoordinatorConfig,
	executor exec.Interface,
	workspace registry.Interface,
	shared registry.Interface,
	approvals approval.Interface,
	requests promotion.Interface,
	logger *log.Logger,
	events domain.EventSink,
) *Coordinator {
	submitter := &Submitter{
		Exec:          executor,
		MaxInFlight:   conf.Submit().MaxInFlight(),
		RetryInterval: conf.Submit().RetryInterval(),
		MaxRetries:    conf.Submit().MaxRetries(),
		Logger:        logger,
		Events:        events,
	}
	monitor := &Monitor{
		Exec:            executor,
		InitialInterval: conf.Monitor().InitialInterval(),
		MaxInterval:     conf.Monitor().MaxInterval(),
		Timeout:         conf.Monitor().Timeout(),
		NoticeInterval:  conf.Monitor().NoticeInterval(),
		Logger:          logger,
		Events:          events,
	}

	return &Coordinator{
		selector: &Selector{
			Workspace:          workspace,
			TrainAllOnFirstRun: conf.Selector().TrainAllOnFirstRun(),
			Logger:             logger,
			Events:             events,
		},
		submitter: submitter,
		monitor:   monitor,
		retryGate: &RetryGate{
			Approvals: approvals,
			Timeout:   conf.RetryGate().ApprovalTimeout(),
			Submitter: submitter,
			Monitor:   monitor,
			Logger:    logger,
			Events:    events,
		},
		registrar: &Registrar{
			Workspace:        workspace,
			SuccessThreshold: conf.Registration().SuccessThreshold(),
			Logger:           logger,
			Events:           events,
		},
		promoter: &Promoter{
			Requests:                  requests,
			Approvals:                 approvals,
			Registry:                  shared,
			ApprovalTimeout:           conf.Promotion().ApprovalTimeout(),
			VisibilityInitialInterval: conf.Promotion().Visibility().InitialInterval(),
			VisibilityMaxInterval:     conf.Promotion().Visibility().MaxInterval(),
			VisibilityTimeout:         conf.Promotion().Visibility().Timeout(),
			Logger:                    logger,
			Events:                    events,
		},
		logger: logger,
	}
}

// Run executes one full pass: select, submit, monitor, gate retries,
// register, promote.
//
// The summary is returned alongside any error, so a failing run still
// reports what it did get done. A run where nothing changed returns a
// zero summary with empty Errors and nil error; that is success, not a
// masked failure.
func (c *Coordinator) Run(
	ctx context.Context,
	units []domain.UnitConfig,
	mode domain.RunMode,
	manualUnitIDs []string,
) (domain.RunSummary, error) {
	summary := domain.RunSummary{}

	selected, err := c.selector.Select(ctx, units, mode, manualUnitIDs)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}
	if len(selected) == 0 {
		c.logger.Printf("no unit needs training; nothing to do")
		return summary, nil
	}

	byID := map[string]domain.UnitConfig{}
	for _, unit := range selected {
		byID[unit.UnitID()] = unit
	}

	jobs, err := c.submitter.Submit(ctx, selected, false)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}
	summary.Submitted = len(jobs)

	completed, failed, err := c.monitor.Wait(ctx, jobs)
	summary.Completed = len(completed)
	summary.Failed = len(failed)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	retried, err := c.retryGate.Run(ctx, failed, byID)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}
	summary.Retried = len(retried)
	summary.Failed -= len(retried)

	// the original completed set is extended, never replaced
	all := append(append([]domain.TrainingJob{}, completed...), retried...)

	artifacts, failures, err := c.registrar.Register(ctx, all, byID)
	summary.Registered = len(artifacts)
	summary.Errors = append(summary.Errors, failures...)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, err
	}

	promoted, failures := c.promoter.PromoteAll(ctx, artifacts)
	summary.Promoted = promoted
	summary.Errors = append(summary.Errors, failures...)

	c.logger.Printf(
		"run done: submitted=%d completed=%d failed=%d retried=%d registered=%d promoted=%d errors=%d",
		summary.Submitted, summary.Completed, summary.Failed,
		summary.Retried, summary.Registered, summary.Promoted, len(summary.Errors),
	)
	return summary, nil
}
