/*
Copyright © 2018 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud dispatches ppgrid runs as Kubernetes batch Jobs, so a
// large pipeline invocation can be handed to a cluster instead of run
// on the caller's machine. It is a trimmed descendant of the
// teacher's gRPC-web cloud client: the wire protocol and blob-storage
// input staging are gone (ppgrid pipelines read/write files already
// reachable from the cluster, typically a shared volume), leaving a
// plain Kubernetes Job submit/status/delete/logs client with
// cenkalti/backoff retries on the control-plane calls.
package cloud

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	batch "k8s.io/api/batch/v1"
	core "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	meta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	batchclient "k8s.io/client-go/kubernetes/typed/batch/v1"
	corev1client "k8s.io/client-go/kubernetes/typed/core/v1"
)

// Namespace is the Kubernetes namespace ppgrid batch jobs run in.
const Namespace = "ppgrid-batch"

// Status is the lifecycle state of a submitted job.
type Status int

const (
	StatusMissing Status = iota
	StatusWaiting
	StatusRunning
	StatusComplete
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusFailed:
		return "failed"
	default:
		return "missing"
	}
}

// JobStatus reports a job's current lifecycle state.
type JobStatus struct {
	Status                         Status
	Message                        string
	StartTime, CompletionTime      time.Time
}

// Client submits and tracks ppgrid batch runs on a Kubernetes cluster.
type Client struct {
	jobControl batchclient.JobInterface
	podControl corev1client.PodInterface

	// Image is the container image each job runs ppgrid in.
	Image string

	// Volumes are mounted read-only into every job's container at
	// /data/<volume name>.
	Volumes []core.Volume

	// Backoff governs retries of the Kubernetes API calls RunJob,
	// Status, Logs, and Delete make; a nil Backoff disables retrying.
	Backoff backoff.BackOff
}

// NewClient returns a Client submitting jobs through k's batch/v1 API
// in Namespace.
func NewClient(k kubernetes.Interface) *Client {
	return &Client{
		jobControl: k.BatchV1().Jobs(Namespace),
		podControl: k.CoreV1().Pods(Namespace),
		Image:      "ppgrid:latest",
		Backoff:    backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5),
	}
}

// RunJob submits a Kubernetes Job running `ppgrid run <js.Args...>`
// and returns its status once creation succeeds. If a job with this
// name already exists and is not Failed, RunJob returns its current
// status instead of creating a duplicate.
func (c *Client) RunJob(ctx context.Context, js *JobSpec) (*JobStatus, error) {
	if err := js.Validate(); err != nil {
		return nil, err
	}
	name := SanitizeJobName(js.Name)

	status, err := c.Status(ctx, name)
	if err != nil {
		return nil, err
	}
	if status.Status != StatusFailed && status.Status != StatusMissing {
		return status, nil
	}
	if status.Status == StatusFailed {
		if err := c.Delete(ctx, name); err != nil {
			return nil, err
		}
	}

	k8sJob := newJobSpec(name, js.Args, c.Image, core.ResourceList{
		core.ResourceMemory: resource.MustParse(fmt.Sprintf("%dGi", js.MemoryGB)),
	}, c.Volumes)

	op := func() error {
		_, err := c.jobControl.Create(ctx, k8sJob, meta.CreateOptions{})
		return err
	}
	if err := c.retry(ctx, op); err != nil {
		return nil, fmt.Errorf("cloud: creating job '%s': %w", name, err)
	}
	return c.Status(ctx, name)
}

// Status returns the current lifecycle state of the job named name.
func (c *Client) Status(ctx context.Context, name string) (*JobStatus, error) {
	name = SanitizeJobName(name)
	var k8sJob *batch.Job
	op := func() error {
		j, err := c.jobControl.Get(ctx, name, meta.GetOptions{})
		k8sJob = j
		return err
	}
	if err := c.retry(ctx, op); err != nil {
		return &JobStatus{Status: StatusMissing, Message: err.Error()}, nil
	}

	s := &JobStatus{}
	for i, cond := range k8sJob.Status.Conditions {
		if i != len(k8sJob.Status.Conditions)-1 {
			continue
		}
		switch {
		case cond.Type == batch.JobComplete && cond.Status == core.ConditionTrue:
			s.Status = StatusComplete
		case cond.Type == batch.JobFailed && cond.Status == core.ConditionTrue:
			s.Status = StatusFailed
			s.Message = cond.Message
		}
	}
	if len(k8sJob.Status.Conditions) == 0 {
		if k8sJob.Status.Active > 0 {
			s.Status = StatusRunning
		} else {
			s.Status = StatusWaiting
		}
	}
	if k8sJob.Status.StartTime != nil {
		s.StartTime = k8sJob.Status.StartTime.Time
	}
	if k8sJob.Status.CompletionTime != nil {
		s.CompletionTime = k8sJob.Status.CompletionTime.Time
	}
	return s, nil
}

// Logs returns the concatenated container logs of every pod backing
// the job named name, most recently created first. The Kubernetes job
// controller labels every pod it creates with job-name=<job>, which
// is what the pod list here selects on.
func (c *Client) Logs(ctx context.Context, name string) (string, error) {
	name = SanitizeJobName(name)

	var pods *core.PodList
	op := func() error {
		p, err := c.podControl.List(ctx, meta.ListOptions{LabelSelector: "job-name=" + name})
		pods = p
		return err
	}
	if err := c.retry(ctx, op); err != nil {
		return "", fmt.Errorf("cloud: listing pods for job '%s': %w", name, err)
	}

	items := pods.Items
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreationTimestamp.After(items[j].CreationTimestamp.Time)
	})

	var out strings.Builder
	for _, pod := range items {
		stream, err := c.podControl.GetLogs(pod.Name, &core.PodLogOptions{}).Stream(ctx)
		if err != nil {
			return "", fmt.Errorf("cloud: fetching logs for pod '%s': %w", pod.Name, err)
		}
		data, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			return "", fmt.Errorf("cloud: reading logs for pod '%s': %w", pod.Name, err)
		}
		fmt.Fprintf(&out, "--- %s ---\n", pod.Name)
		out.Write(data)
	}
	return out.String(), nil
}

// Delete removes the job named name.
func (c *Client) Delete(ctx context.Context, name string) error {
	name = SanitizeJobName(name)
	propagate := meta.DeletePropagationForeground
	op := func() error {
		return c.jobControl.Delete(ctx, name, meta.DeleteOptions{PropagationPolicy: &propagate})
	}
	if err := c.retry(ctx, op); err != nil {
		return fmt.Errorf("cloud: deleting job '%s': %w", name, err)
	}
	return nil
}

func (c *Client) retry(ctx context.Context, op backoff.Operation) error {
	if c.Backoff == nil {
		return op()
	}
	return backoff.Retry(op, backoff.WithContext(c.Backoff, ctx))
}

// SanitizeJobName maps name toward a Kubernetes object name: lower
// case, with underscores, spaces and dots turned into hyphens. Other
// characters are passed through unchanged.
func SanitizeJobName(name string) string {
	name = strings.ToLower(name)
	return strings.NewReplacer("_", "-", " ", "-", ".", "-").Replace(name)
}

// newJobSpec builds a Kubernetes Job specification running
// `ppgrid run args...` in a single container that is restarted on
// failure.
func newJobSpec(name string, args []string, image string, resources core.ResourceList, volumes []core.Volume) *batch.Job {
	mounts := make([]core.VolumeMount, len(volumes))
	for i, v := range volumes {
		mounts[i] = core.VolumeMount{Name: v.Name, ReadOnly: true, MountPath: "/data/" + v.Name}
	}

	jobArgs := append([]string{"run"}, args...)
	return &batch.Job{
		TypeMeta:   meta.TypeMeta{Kind: "Job", APIVersion: "batch/v1"},
		ObjectMeta: meta.ObjectMeta{Name: name},
		Spec: batch.JobSpec{
			Template: core.PodTemplateSpec{
				ObjectMeta: meta.ObjectMeta{
					Name:   name + "-pod",
					Labels: map[string]string{"app": "ppgrid-batch"},
				},
				Spec: core.PodSpec{
					Containers: []core.Container{
						{
							Name:         "ppgrid",
							Image:        image,
							Command:      []string{"ppgrid"},
							Args:         jobArgs,
							Resources:    core.ResourceRequirements{Requests: resources},
							VolumeMounts: mounts,
						},
					},
					Volumes:       volumes,
					RestartPolicy: core.RestartPolicyOnFailure,
				},
			},
		},
	}
}
