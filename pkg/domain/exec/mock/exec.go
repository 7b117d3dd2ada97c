package mock

import (
	"context"
	"errors"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/exec"
)

type CallLog[T any] []T

func (c CallLog[T]) Times() int {
	return len(c)
}

type ExecService struct {
	Impl struct {
		Submit func(ctx context.Context, spec exec.Spec) (string, error)
		Status func(ctx context.Context, handle string) (domain.JobStatus, error)
		Cancel func(ctx context.Context, handle string) error
	}

	Calls struct {
		Submit CallLog[exec.Spec]
		Status CallLog[string]
		Cancel CallLog[string]
	}
}

func New() *ExecService {
	return &ExecService{}
}

var _ exec.Interface = &ExecService{}

func (m *ExecService) Submit(ctx context.Context, spec exec.Spec) (string, error) {
	m.Calls.Submit = append(m.Calls.Submit, spec)
	if m.Impl.Submit != nil {
		return m.Impl.Submit(ctx, spec)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecService) Status(ctx context.Context, handle string) (domain.JobStatus, error) {
	m.Calls.Status = append(m.Calls.Status, handle)
	if m.Impl.Status != nil {
		return m.Impl.Status(ctx, handle)
	}
	panic(errors.New("it should not be called"))
}

func (m *ExecService) Cancel(ctx context.Context, handle string) error {
	m.Calls.Cancel = append(m.Calls.Cancel, handle)
	if m.Impl.Cancel != nil {
		return m.Impl.Cancel(ctx, handle)
	}
	panic(errors.New("it should not be called"))
}
