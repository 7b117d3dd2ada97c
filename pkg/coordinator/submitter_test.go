package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opsline/trainyard/pkg/coordinator"
	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/exec"
	execmock "github.com/opsline/trainyard/pkg/domain/exec/mock"
	"github.com/opsline/trainyard/pkg/utils/cmp"
	"github.com/opsline/trainyard/pkg/utils/try"
)

func TestSubmitter(t *testing.T) {
	ctx := context.Background()

	t.Run("it submits one job per unit with unit identity and lineage hash", func(t *testing.T) {
		units := testUnits()

		svc := execmock.New()
		mu := sync.Mutex{}
		counter := 0
		svc.Impl.Submit = func(_ context.Context, spec exec.Spec) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			counter += 1
			return spec.JobName, nil
		}

		sub := &coordinator.Submitter{
			Exec: svc, MaxInFlight: 5,
			RetryInterval: time.Millisecond, MaxRetries: 2,
			Logger: log.Default(),
		}
		jobs := try.To(sub.Submit(ctx, units, false)).OrFatal(t)

		if len(jobs) != len(units) {
			t.Fatalf("unexpected job count: %d", len(jobs))
		}

		gotIDs := []string{}
		for _, job := range jobs {
			gotIDs = append(gotIDs, job.UnitID)
			if job.Status != domain.JobQueued {
				t.Errorf("job %s should start queued, is %s", job.Handle, job.Status)
			}
			if job.Retried {
				t.Errorf("job %s should not carry the retry marker", job.Handle)
			}
		}
		if !cmp.SliceContentEq(gotIDs, unitIDs(units)) {
			t.Errorf("unexpected units submitted: %v", gotIDs)
		}

		for _, spec := range svc.Calls.Submit {
			if spec.LineageHash == "" || spec.UnitID == "" {
				t.Errorf("spec missing identity: %+v", spec)
			}
		}
	})

	t.Run("it never exceeds the in-flight cap", func(t *testing.T) {
		units := testUnits()

		inFlight := int32(0)
		peak := int32(0)
		svc := execmock.New()
		svc.Impl.Submit = func(_ context.Context, spec exec.Spec) (string, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return spec.JobName, nil
		}

		sub := &coordinator.Submitter{
			Exec: svc, MaxInFlight: 2,
			RetryInterval: time.Millisecond, MaxRetries: 0,
			Logger: log.Default(),
		}
		try.To(sub.Submit(ctx, units, false)).OrFatal(t)

		if 2 < atomic.LoadInt32(&peak) {
			t.Errorf("in-flight cap exceeded: peak = %d", peak)
		}
	})

	t.Run("a transient submission failure is retried", func(t *testing.T) {
		units := testUnits()[:1]

		svc := execmock.New()
		attempts := 0
		svc.Impl.Submit = func(_ context.Context, spec exec.Spec) (string, error) {
			attempts += 1
			if attempts < 3 {
				return "", errors.New("api unavailable")
			}
			return spec.JobName, nil
		}

		sub := &coordinator.Submitter{
			Exec: svc, MaxInFlight: 1,
			RetryInterval: time.Millisecond, MaxRetries: 2,
			Logger: log.Default(),
		}
		jobs := try.To(sub.Submit(ctx, units, false)).OrFatal(t)

		if len(jobs) != 1 {
			t.Fatalf("unexpected job count: %d", len(jobs))
		}
		if attempts != 3 {
			t.Errorf("unexpected attempt count: %d", attempts)
		}
	})

	t.Run("exhausted retries cancel the whole batch", func(t *testing.T) {
		units := testUnits()

		svc := execmock.New()
		mu := sync.Mutex{}
		svc.Impl.Submit = func(_ context.Context, spec exec.Spec) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if spec.UnitID == units[1].UnitID() {
				return "", errors.New("api unavailable")
			}
			return spec.JobName, nil
		}
		canceled := []string{}
		svc.Impl.Cancel = func(_ context.Context, handle string) error {
			mu.Lock()
			defer mu.Unlock()
			canceled = append(canceled, handle)
			return nil
		}

		sub := &coordinator.Submitter{
			Exec: svc, MaxInFlight: 5,
			RetryInterval: time.Millisecond, MaxRetries: 2,
			Logger: log.Default(),
		}
		jobs, err := sub.Submit(ctx, units, false)

		if err == nil {
			t.Fatal("partial submission was tolerated")
		}
		if jobs != nil {
			t.Errorf("jobs should not survive an aborted batch: %v", jobs)
		}
		if len(canceled) != 2 {
			t.Errorf("expected the 2 submitted jobs canceled, got: %v", canceled)
		}
	})

	t.Run("resubmitting a unit never reuses a job name", func(t *testing.T) {
		units := testUnits()[:1]

		// a cluster keeps failed jobs around; a name collision there is
		// rejected outright
		svc := execmock.New()
		mu := sync.Mutex{}
		created := map[string]bool{}
		svc.Impl.Submit = func(_ context.Context, spec exec.Spec) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			if created[spec.JobName] {
				return "", fmt.Errorf("jobs %q already exists", spec.JobName)
			}
			created[spec.JobName] = true
			return spec.JobName, nil
		}

		sub := &coordinator.Submitter{
			Exec: svc, MaxInFlight: 1,
			RetryInterval: time.Millisecond, MaxRetries: 0,
			Logger: log.Default(),
		}

		first := try.To(sub.Submit(ctx, units, false)).OrFatal(t)
		second := try.To(sub.Submit(ctx, units, true)).OrFatal(t)

		if first[0].Handle == second[0].Handle {
			t.Errorf("job name reused across attempts: %s", first[0].Handle)
		}

		hash := try.To(units[0].LineageHash()).OrFatal(t)
		stem := strings.ToLower(fmt.Sprintf("train-%s-%s-", units[0].UnitID(), hash))
		for _, handle := range []string{first[0].Handle, second[0].Handle} {
			if !strings.HasPrefix(handle, stem) {
				t.Errorf("job name %s lost the unit/lineage stem %s", handle, stem)
			}
		}
	})

	t.Run("a retry batch marks every job retried", func(t *testing.T) {
		units := testUnits()[:1]

		svc := execmock.New()
		svc.Impl.Submit = func(_ context.Context, spec exec.Spec) (string, error) {
			return spec.JobName, nil
		}

		sub := &coordinator.Submitter{
			Exec: svc, MaxInFlight: 1,
			RetryInterval: time.Millisecond, MaxRetries: 0,
			Logger: log.Default(),
		}
		jobs := try.To(sub.Submit(ctx, units, true)).OrFatal(t)

		if !jobs[0].Retried {
			t.Error("retry marker missing")
		}
	})
}
