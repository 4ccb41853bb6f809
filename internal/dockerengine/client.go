// Package dockerengine is a thin request/response layer over the container
// engine's HTTP API, transported on a local unix socket. It drives one
// container through its whole lifecycle — create, start, attach, inspect,
// delete — and adds the manual multiplex decode and RFC-3339 nanosecond
// timestamp parsing the docker/docker Go client leaves to its callers.
package dockerengine

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/akshayaggarwal99/runengine/internal/config"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog/log"
)

// dockerAPI is the subset of *client.Client this package depends on. It
// exists so tests can substitute a fake without standing up a real engine.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig any, platform any, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options types.ContainerStartOptions) error
	ContainerAttach(ctx context.Context, containerID string, options types.ContainerAttachOptions) (types.HijackedResponse, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerRemove(ctx context.Context, containerID string, options types.ContainerRemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// clientAdapter narrows *client.Client's real signatures (which take typed
// networkingConfig/platform arguments) down to the dockerAPI interface.
type clientAdapter struct {
	cli *client.Client
}

func (a clientAdapter) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, _, _ any, name string) (container.CreateResponse, error) {
	return a.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
}

func (a clientAdapter) ContainerStart(ctx context.Context, id string, opts types.ContainerStartOptions) error {
	return a.cli.ContainerStart(ctx, id, opts)
}

func (a clientAdapter) ContainerAttach(ctx context.Context, id string, opts types.ContainerAttachOptions) (types.HijackedResponse, error) {
	return a.cli.ContainerAttach(ctx, id, opts)
}

func (a clientAdapter) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	return a.cli.ContainerInspect(ctx, id)
}

func (a clientAdapter) ContainerRemove(ctx context.Context, id string, opts types.ContainerRemoveOptions) error {
	return a.cli.ContainerRemove(ctx, id, opts)
}

func (a clientAdapter) ImagePull(ctx context.Context, ref string, opts types.ImagePullOptions) (io.ReadCloser, error) {
	return a.cli.ImagePull(ctx, ref, opts)
}

func (a clientAdapter) Ping(ctx context.Context) (types.Ping, error) {
	return a.cli.Ping(ctx)
}

func (a clientAdapter) Close() error {
	return a.cli.Close()
}

// EngineError carries diagnostic detail for a non-2xx/transport failure:
// the request body, the parsed response (when any), and the status.
type EngineError struct {
	Op       string
	Status   string
	Request  any
	Response any
	Err      error
}

func (e *EngineError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("dockerengine: %s failed (%s): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("dockerengine: %s failed: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Client is shared across all concurrent runs for the process lifetime; one
// long-lived instance is expected per process.
type Client struct {
	api dockerAPI
	cfg *config.Config
}

// NewClient dials the container engine over cfg.SocketPath, using
// cfg.APIVersion as the API version embedded in every request URL
// ("unix://<api_version>/<path>").
func NewClient(cfg *config.Config) (*Client, error) {
	cli, err := client.NewClientWithOpts(
		client.WithHost("unix://"+cfg.SocketPath),
		client.WithVersion(cfg.APIVersion),
	)
	if err != nil {
		return nil, fmt.Errorf("dockerengine: dial %s: %w", cfg.SocketPath, err)
	}
	return &Client{api: clientAdapter{cli: cli}, cfg: cfg}, nil
}

// Healthy pings the container engine.
func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.api.Ping(ctx)
	return err
}

// Close releases the underlying socket connection.
func (c *Client) Close() error {
	return c.api.Close()
}

// ContainerSpec is the subset of the create body fixed for every run container.
type ContainerSpec struct {
	Image string
	Env   []string
}

// Create issues POST containers/create.
func (c *Client) Create(ctx context.Context, spec ContainerSpec) (id string, err error) {
	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:     c.cfg.MaxRAMBytes,
			MemorySwap: c.cfg.MaxRAMBytes,
			CPUQuota:   100000,
			CPUPeriod:  c.cfg.CPUPeriod(),
		},
	}

	stopTimeout := c.cfg.ContainerStopTimeoutSeconds

	containerConfig := &container.Config{
		Image:           spec.Image,
		Env:             spec.Env,
		WorkingDir:      "/sandbox",
		NetworkDisabled: true,
		StopTimeout:     &stopTimeout,
		Healthcheck:     &container.HealthConfig{Test: []string{"NONE"}},
	}

	resp, err := c.api.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return "", &EngineError{Op: "create", Request: spec, Err: err}
	}
	return resp.ID, nil
}

// Start issues POST containers/{id}/start.
func (c *Client) Start(ctx context.Context, id string) error {
	if err := c.api.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return &EngineError{Op: "start", Request: id, Err: err}
	}
	return nil
}

// AttachResult is the demultiplexed output of one attach call.
type AttachResult struct {
	Stdout    []byte
	Stderr    []byte
	Truncated bool
}

// Attach issues POST containers/{id}/attach with logs/stream/stdin/stdout/stderr
// all set, and demultiplexes the resulting stream into bounded stdout/stderr
// buffers. It blocks until the container exits, the socket hits EOF, or the
// coarse safety timeout (execTimeout) elapses — whichever comes first. On any
// mid-stream error the partial buffers accumulated so far are returned with a
// nil error; the caller still inspects and destroys the container.
func (c *Client) Attach(ctx context.Context, id string, execTimeout time.Duration, outputByteCap int) (*AttachResult, error) {
	attachCtx, cancel := context.WithTimeout(ctx, execTimeout)
	defer cancel()

	resp, err := c.api.ContainerAttach(attachCtx, id, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
		Logs:   true,
	})
	if err != nil {
		return nil, &EngineError{Op: "attach", Request: id, Err: err}
	}
	defer resp.Close()

	acc := &attachAccumulator{}
	done := make(chan struct{})
	go func() {
		demuxAttachStream(resp.Reader, acc)
		close(done)
	}()

	select {
	case <-attachCtx.Done():
		// Coarse safety cap (or caller cancellation) hit before EOF.
		// acc already holds whatever was demultiplexed so far; closing the
		// hijacked connection unblocks the demux goroutine's blocking read.
		log.Warn().Str("container_id", id).Msg("attach stream hit safety timeout before EOF, using partial output")
	case <-done:
	}

	stdout, stderr := acc.snapshot()
	truncatedOut, tOut := truncate(stdout, outputByteCap)
	truncatedErr, tErr := truncate(stderr, outputByteCap)

	return &AttachResult{
		Stdout:    truncatedOut,
		Stderr:    truncatedErr,
		Truncated: tOut || tErr,
	}, nil
}

// InspectResult is the subset of `GET containers/{id}/json` the engine cares about.
type InspectResult struct {
	ExitCode   int
	ExecTime   float64
	StartedAt  string
	FinishedAt string
}

// Inspect issues GET containers/{id}/json and computes exec_time from the
// reported start/finish timestamps.
func (c *Client) Inspect(ctx context.Context, id string) (*InspectResult, error) {
	info, err := c.api.ContainerInspect(ctx, id)
	if err != nil {
		return nil, &EngineError{Op: "inspect", Request: id, Err: err}
	}
	if info.ContainerJSONBase == nil || info.State == nil {
		return nil, &EngineError{Op: "inspect", Request: id, Err: fmt.Errorf("missing State in inspect response")}
	}

	et, err := execTime(info.State.StartedAt, info.State.FinishedAt)
	if err != nil {
		return nil, &EngineError{Op: "inspect", Request: id, Err: fmt.Errorf("parse timestamps: %w", err)}
	}

	return &InspectResult{
		ExitCode:   info.State.ExitCode,
		ExecTime:   et,
		StartedAt:  info.State.StartedAt,
		FinishedAt: info.State.FinishedAt,
	}, nil
}

// Delete issues DELETE containers/{id}?v=1&force=1, removing volumes and
// force-killing. Cleanup errors are logged but never returned as a fatal
// failure of the surrounding run.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.api.ContainerRemove(ctx, id, types.ContainerRemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
	if err != nil {
		return &EngineError{Op: "delete", Request: id, Err: err}
	}
	return nil
}

// PullImage refreshes the image for a language.
func (c *Client) PullImage(ctx context.Context, image string) error {
	reader, err := c.api.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return &EngineError{Op: "pull", Request: image, Err: err}
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return &EngineError{Op: "pull", Request: image, Err: err}
	}
	return nil
}

// ImageName builds the "<image-prefix>-<language>" naming convention.
func ImageName(language string) string {
	return fmt.Sprintf("%s-%s", config.ImagePrefix, language)
}
