package supervisor

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Runtime is the containerd-backed primitive the Supervisor drives. It
// knows nothing about models, gates, or secrets — only containers.
type Runtime struct {
	client    *containerd.Client
	namespace string
}

// NewRuntime connects to containerd over socketPath.
func NewRuntime(socketPath, namespace string) (*Runtime, error) {
	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting to containerd: %w", err)
	}
	return &Runtime{client: client, namespace: namespace}, nil
}

func (r *Runtime) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Runtime) ctx(ctx context.Context) context.Context {
	return namespaces.WithNamespace(ctx, r.namespace)
}

// ContainerSpec describes the isolation contract a worker container must be
// created under: internal network only, no host ports, a read-only model
// mount, the allocated non-root UID, and no elevated capabilities.
type ContainerSpec struct {
	ID          string
	Image       string
	UID         int
	Env         []string
	ModelMount  string // host path to the model artifact directory
	NetworkNSFD string // path to the pre-created isolated network namespace
}

// CreateAndStart creates the container under the isolation contract and
// starts its task.
func (r *Runtime) CreateAndStart(ctx context.Context, spec ContainerSpec) error {
	ctx = r.ctx(ctx)

	image, err := r.client.GetImage(ctx, spec.Image)
	if err != nil {
		image, err = r.client.Pull(ctx, spec.Image, containerd.WithPullUnpack)
		if err != nil {
			return fmt.Errorf("pulling worker image %s: %w", spec.Image, err)
		}
	}

	mounts := []specs.Mount{{
		Source:      spec.ModelMount,
		Destination: "/models",
		Type:        "bind",
		Options:     []string{"ro", "bind"},
	}}

	opts := []oci.SpecOpts{
		oci.WithImageConfig(image),
		oci.WithEnv(spec.Env),
		oci.WithUIDGID(uint32(spec.UID), uint32(spec.UID)),
		oci.WithMounts(mounts),
		oci.WithCapabilities(nil), // no elevated capabilities
		oci.WithLinuxNamespace(specs.LinuxNamespace{Type: specs.NetworkNamespace, Path: spec.NetworkNSFD}),
	}

	container, err := r.client.NewContainer(
		ctx,
		spec.ID,
		containerd.WithImage(image),
		containerd.WithNewSnapshot(spec.ID+"-snapshot", image),
		containerd.WithNewSpec(opts...),
		containerd.WithAdditionalContainerLabels(map[string]string{"sovereign.managed-by": "sovereign-gateway"}),
	)
	if err != nil {
		return fmt.Errorf("creating worker container: %w", err)
	}

	task, err := container.NewTask(ctx, cio.NullIO)
	if err != nil {
		return fmt.Errorf("creating worker task: %w", err)
	}
	if err := task.Start(ctx); err != nil {
		return fmt.Errorf("starting worker task: %w", err)
	}
	return nil
}

// Stop sends SIGTERM, waits up to grace, then SIGKILLs, and removes the
// task and container.
func (r *Runtime) Stop(ctx context.Context, containerID string, grace time.Duration) error {
	ctx = r.ctx(ctx)

	container, err := r.client.LoadContainer(ctx, containerID)
	if err != nil {
		return nil // already gone
	}

	task, err := container.Task(ctx, nil)
	if err == nil {
		stopCtx, cancel := context.WithTimeout(ctx, grace)
		defer cancel()

		if err := task.Kill(stopCtx, syscall.SIGTERM); err == nil {
			statusC, waitErr := task.Wait(stopCtx)
			if waitErr == nil {
				select {
				case <-statusC:
				case <-stopCtx.Done():
					_ = task.Kill(ctx, syscall.SIGKILL)
				}
			}
		}
		_, _ = task.Delete(ctx)
	}

	return container.Delete(ctx, containerd.WithSnapshotCleanup)
}

// List enumerates containers carrying the managed-by label.
func (r *Runtime) List(ctx context.Context) ([]string, error) {
	ctx = r.ctx(ctx)
	containers, err := r.client.Containers(ctx, "labels.\"sovereign.managed-by\"==sovereign-gateway")
	if err != nil {
		return nil, fmt.Errorf("listing managed containers: %w", err)
	}
	ids := make([]string, 0, len(containers))
	for _, c := range containers {
		ids = append(ids, c.ID())
	}
	return ids, nil
}
