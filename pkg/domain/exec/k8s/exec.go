// Execution service backed by kubernetes batch/v1 Jobs.
//
// One Submit creates one Job running the trainer image for one unit.
// The Job name is the handle; unit id and lineage hash ride on labels
// so that remote jobs stay attributable without any local state.
package k8s

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	kubebatch "k8s.io/api/batch/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"

	"github.com/opsline/trainyard/pkg/domain"
	"github.com/opsline/trainyard/pkg/domain/exec"
	xe "github.com/opsline/trainyard/pkg/errors"
	"github.com/opsline/trainyard/pkg/utils/pointer"
)

const (
	LabelUnitID      = "trainyard/unit-id"
	LabelLineageHash = "trainyard/lineage-hash"
)

// subset of k8s.Clientset used by this package
type K8sClient interface {
	CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error)
	GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error)
	DeleteJob(ctx context.Context, namespace string, name string) error
}

type k8sClient struct {
	client *k8s.Clientset
}

var _ K8sClient = &k8sClient{}

func (k *k8sClient) CreateJob(ctx context.Context, namespace string, job *kubebatch.Job) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Create(ctx, job, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) GetJob(ctx context.Context, namespace string, name string) (*kubebatch.Job, error) {
	return k.client.BatchV1().Jobs(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) DeleteJob(ctx context.Context, namespace string, name string) error {
	policy := kubeapimeta.DeletePropagationBackground
	return k.client.BatchV1().Jobs(namespace).Delete(ctx, name, kubeapimeta.DeleteOptions{
		PropagationPolicy: &policy,
	})
}

func WrapK8sClient(c *k8s.Clientset) K8sClient {
	return &k8sClient{client: c}
}

type Config struct {
	// Namespace where trainer Jobs are created.
	Namespace string

	// Image of the trainer container.
	Image string

	// ServiceAccount for trainer pods. Optional.
	ServiceAccount string
}

type executionService struct {
	client K8sClient
	conf   Config
}

// New builds an exec.Interface over a k8s cluster.
//
// The trainer image reference is validated eagerly; a malformed
// reference should fail wiring, not the first Submit.
func New(client K8sClient, conf Config) (exec.Interface, error) {
	ref, err := name.ParseReference(conf.Image, name.WeakValidation)
	if err != nil {
		return nil, xe.WrapWithNote(fmt.Sprintf("trainer image %q", conf.Image), err)
	}
	conf.Image = ref.Name()

	return &executionService{client: client, conf: conf}, nil
}

func (e *executionService) Submit(ctx context.Context, spec exec.Spec) (string, error) {
	env := make([]kubecore.EnvVar, 0, len(spec.Parameters))
	for k, v := range spec.Parameters {
		env = append(env, kubecore.EnvVar{Name: k, Value: v})
	}

	job := &kubebatch.Job{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:      jobName(spec.JobName),
			Namespace: e.conf.Namespace,
			Labels: map[string]string{
				LabelUnitID:      labelValue(spec.UnitID),
				LabelLineageHash: labelValue(spec.LineageHash),
			},
		},
		Spec: kubebatch.JobSpec{
			BackoffLimit: pointer.Ref(int32(0)),
			Template: kubecore.PodTemplateSpec{
				ObjectMeta: kubeapimeta.ObjectMeta{
					Labels: map[string]string{
						LabelUnitID:      labelValue(spec.UnitID),
						LabelLineageHash: labelValue(spec.LineageHash),
					},
				},
				Spec: kubecore.PodSpec{
					RestartPolicy:      kubecore.RestartPolicyNever,
					ServiceAccountName: e.conf.ServiceAccount,
					Containers: []kubecore.Container{
						{
							Name:  "trainer",
							Image: e.conf.Image,
							Env:   env,
						},
					},
				},
			},
		},
	}

	created, err := e.client.CreateJob(ctx, e.conf.Namespace, job)
	if err != nil {
		return "", xe.Wrap(err)
	}
	return created.Name, nil
}

func (e *executionService) Status(ctx context.Context, handle string) (domain.JobStatus, error) {
	job, err := e.client.GetJob(ctx, e.conf.Namespace, handle)
	if err != nil {
		if kubeerr.IsNotFound(err) {
			return "", exec.ErrMissing
		}
		return "", xe.Wrap(err)
	}

	for _, cond := range job.Status.Conditions {
		if cond.Status != kubecore.ConditionTrue {
			continue
		}
		switch cond.Type {
		case kubebatch.JobComplete:
			return domain.JobCompleted, nil
		case kubebatch.JobFailed:
			return domain.JobFailed, nil
		}
	}

	if 0 < job.Status.Active {
		return domain.JobRunning, nil
	}
	return domain.JobQueued, nil
}

func (e *executionService) Cancel(ctx context.Context, handle string) error {
	if err := e.client.DeleteJob(ctx, e.conf.Namespace, handle); err != nil {
		if kubeerr.IsNotFound(err) {
			return exec.ErrMissing
		}
		return xe.Wrap(err)
	}
	return nil
}

// jobName squeezes an arbitrary job name into a DNS-1123 subdomain.
func jobName(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', '0' <= r && r <= '9', r == '-', r == '.':
			return r
		default:
			return '-'
		}
	}, s)
	s = strings.Trim(s, "-.")
	if 63 < len(s) {
		s = s[:63]
	}
	return s
}

// labelValue squeezes a string into a valid k8s label value.
func labelValue(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9',
			r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
	if 63 < len(s) {
		s = s[:63]
	}
	return s
}
