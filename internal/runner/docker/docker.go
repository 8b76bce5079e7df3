package docker

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/genimp/genimp/internal/log"
	"github.com/genimp/genimp/internal/model"
	"github.com/genimp/genimp/internal/runner"
)

// containerWorkDir is where the host working directory is mounted inside
// the tool container.
const containerWorkDir = "/work"

// DockerClient is the interface for the Docker operations we use. It allows
// mocking the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// RunnerConfig is the configuration for the Docker runner.
type RunnerConfig struct {
	Client DockerClient
	// Images maps a tool name to the container image that provides it.
	Images map[string]string
	Logger log.Logger
}

func (c *RunnerConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if len(c.Images) == 0 {
		return fmt.Errorf("at least one tool image is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Docker"})
	return nil
}

// Runner runs each tool stage inside a container with the working directory
// bind-mounted, for tools distributed as images rather than host binaries.
type Runner struct {
	client DockerClient
	images map[string]string
	logger log.Logger
}

// NewRunner creates a new Docker runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		client: cfg.Client,
		images: cfg.Images,
		logger: cfg.Logger,
	}, nil
}

// Run executes the tool in a one-off container and waits for it.
func (r *Runner) Run(ctx context.Context, tool string, args []string, workDir string) error {
	imageRef, ok := r.images[tool]
	if !ok {
		return fmt.Errorf("no image configured for tool %s: %w", tool, model.ErrConfiguration)
	}

	r.logger.Debugf("Pulling image %s", imageRef)
	pullResp, err := r.client.ImagePull(ctx, imageRef, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("could not pull image %s: %w", imageRef, err)
	}
	_, _ = io.Copy(io.Discard, pullResp)
	pullResp.Close()

	absWorkDir, err := filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("could not resolve working directory: %w", err)
	}

	created, err := r.client.ContainerCreate(ctx,
		&container.Config{
			Image:      imageRef,
			Cmd:        append([]string{tool}, args...),
			WorkingDir: containerWorkDir,
		},
		&container.HostConfig{
			Binds: []string{absWorkDir + ":" + containerWorkDir},
		},
		nil, nil, "")
	if err != nil {
		return fmt.Errorf("could not create container: %w", err)
	}
	defer func() {
		err := r.client.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
		if err != nil {
			r.logger.Errorf("could not remove container %s: %s", created.ID, err)
		}
	}()

	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("could not start container: %w", err)
	}

	waitCh, errCh := r.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return fmt.Errorf("could not wait for container: %w", err)
	case status := <-waitCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("%s exited with status %d", tool, status.StatusCode)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

var _ runner.Runner = (*Runner)(nil)
