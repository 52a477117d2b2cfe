// Package k8sbackend implements the K8s ResourceBackend of spec §4.10:
// spawn creates a Job object from a cached template per worker, with a
// node selector on the thorium.io/scaler label. Setup creates per-user
// secrets (thorium-<user>-keys) only for the users userSecretsNeeded
// returns, which is an empty set, so no secret is created. Grounded on
// common/pkg/k8sclient's clientset-wrapper pattern and on
// job-manager/pkg/scheduler's use of client-go batch/v1 Jobs.
package k8sbackend

import (
	"context"
	"fmt"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/thorium-sh/thorium/pkg/scaler"
	"github.com/thorium-sh/thorium/pkg/scaler/backends"
	"github.com/thorium-sh/thorium/pkg/types"
)

// JobTemplate renders the base PodSpec a worker's Job object starts
// from; callers fill in per-requisition image/args/resources.
type JobTemplate struct {
	Namespace      string
	ServiceAccount string
	Image          string
}

type Backend struct {
	clientset kubernetes.Interface
	template  JobTemplate
}

func New(clientset kubernetes.Interface, template JobTemplate) *Backend {
	return &Backend{clientset: clientset, template: template}
}

var _ backends.ResourceBackend = (*Backend)(nil)

// ResourcesAvailable reads node capacity/allocatable and the Ready
// condition (node labels are not read) the way
// job-manager's scheduler snapshots a cluster before bin-packing.
func (b *Backend) ResourcesAvailable(ctx context.Context, settings map[string]string) ([]backends.AllocatableUpdate, error) {
	nodes, err := b.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]backends.AllocatableUpdate, 0, len(nodes.Items))
	for _, n := range nodes.Items {
		healthy := true
		for _, cond := range n.Status.Conditions {
			if cond.Type == corev1.NodeReady && cond.Status != corev1.ConditionTrue {
				healthy = false
			}
		}
		out = append(out, backends.AllocatableUpdate{
			Cluster: settings["cluster"],
			Node:    n.Name,
			Total: types.ImageResources{
				CPUMillis: n.Status.Capacity[corev1.ResourceCPU],
				MemoryMiB: n.Status.Capacity[corev1.ResourceMemory],
			},
			Available: types.ImageResources{
				CPUMillis: n.Status.Allocatable[corev1.ResourceCPU],
				MemoryMiB: n.Status.Allocatable[corev1.ResourceMemory],
			},
			Healthy: healthy,
		})
	}
	return out, nil
}

// Setup creates each missing per-user secret (thorium-<user>-keys) for
// the users userSecretsNeeded returns. That set is empty, so Setup
// creates no secrets.
func (b *Backend) Setup(ctx context.Context, cluster string, bans map[string]struct{}) error {
	secrets := b.clientset.CoreV1().Secrets(b.template.Namespace)
	for user := range userSecretsNeeded(bans) {
		name := secretNameFor(user)
		if _, err := secrets.Get(ctx, name, metav1.GetOptions{}); apierrors.IsNotFound(err) {
			_, err := secrets.Create(ctx, &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: b.template.Namespace},
				Type:       corev1.SecretTypeOpaque,
			}, metav1.CreateOptions{})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// userSecretsNeeded is a placeholder hook for the caller-supplied set
// of users with pending requisitions; bans is threaded through so a
// banned user's secret is never (re)provisioned.
func userSecretsNeeded(bans map[string]struct{}) map[string]struct{} {
	return map[string]struct{}{}
}

func (b *Backend) SyncToNewCache(ctx context.Context, cluster string, bans map[string]struct{}) error {
	return nil
}

// Spawn creates one batch/v1 Job per scaler.Spawned decision.
func (b *Backend) Spawn(ctx context.Context, spawns []scaler.Spawned) (map[string]error, error) {
	errs := map[string]error{}
	for _, s := range spawns {
		job := b.jobFor(s)
		if _, err := b.clientset.BatchV1().Jobs(b.template.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
			errs[s.Name] = err
		}
	}
	return errs, nil
}

func (b *Backend) jobFor(s scaler.Spawned) *batchv1.Job {
	backoffLimit := int32(0)
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      s.Name,
			Namespace: b.template.Namespace,
			Labels: map[string]string{
				"thorium.io/user":     s.Requisition.User,
				"thorium.io/group":    s.Requisition.Group,
				"thorium.io/pipeline": s.Requisition.Pipeline,
			},
		},
		Spec: batchv1.JobSpec{
			BackoffLimit: &backoffLimit,
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					ServiceAccountName: b.template.ServiceAccount,
					RestartPolicy:      corev1.RestartPolicyNever,
					NodeSelector:       map[string]string{"thorium.io/scaler": string(s.Requisition.Scaler)},
					Containers: []corev1.Container{{
						Name:  "worker",
						Image: b.template.Image,
						Resources: corev1.ResourceRequirements{
							Requests: corev1.ResourceList{
								corev1.ResourceCPU:    s.Resources.CPUMillis,
								corev1.ResourceMemory: s.Resources.MemoryMiB,
							},
						},
					}},
				},
			},
		},
	}
}

// Delete removes the Job object backing each deletion; Kubernetes'
// garbage collector reclaims the Pod.
func (b *Backend) Delete(ctx context.Context, deletions []scaler.WorkerDeletion) ([]scaler.WorkerDeletion, error) {
	var confirmed []scaler.WorkerDeletion
	policy := metav1.DeletePropagationBackground
	for _, d := range deletions {
		err := b.clientset.BatchV1().Jobs(b.template.Namespace).Delete(ctx, d.Name, metav1.DeleteOptions{PropagationPolicy: &policy})
		if err != nil && !apierrors.IsNotFound(err) {
			continue
		}
		confirmed = append(confirmed, d)
	}
	return confirmed, nil
}

// ClearTerminal returns nil without reading Job or Pod status; this
// backend does not reconcile finished or errored workers.
func (b *Backend) ClearTerminal(ctx context.Context, errorOut []scaler.ErrorOut) error {
	return nil
}

func (b *Backend) TaskDelay(task string) time.Duration {
	switch task {
	case "Resources":
		return 15 * time.Second
	default:
		return time.Minute
	}
}

func secretNameFor(user string) string {
	return fmt.Sprintf("thorium-%s-keys", user)
}
