package exec

import (
	"context"
	"errors"

	"github.com/opsline/trainyard/pkg/domain"
)

// ErrMissing is returned by Status and Cancel when the execution
// service does not know the handle.
var ErrMissing = errors.New("no such job")

// Spec is everything the execution service needs to start one
// training invocation.
type Spec struct {
	// JobName is the requested name for the invocation. The service
	// may return a different handle.
	JobName string

	UnitID      string
	LineageHash string

	// Parameters forwarded to the trainer verbatim.
	Parameters map[string]string
}

// Interface is the external execution service.
//
// Handles returned by Submit are the only reference the coordinator
// keeps; all later interaction goes through Status and Cancel.
type Interface interface {
	Submit(ctx context.Context, spec Spec) (handle string, err error)
	Status(ctx context.Context, handle string) (domain.JobStatus, error)
	Cancel(ctx context.Context, handle string) error
}
