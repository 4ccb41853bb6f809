package dockerengine

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/akshayaggarwal99/runengine/internal/config"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements dockerAPI without a running daemon.
type fakeAPI struct {
	createErr   error
	createID    string
	inspectInfo types.ContainerJSON
	inspectErr  error
	removeErr   error
	pullErr     error
}

func (f *fakeAPI) ContainerCreate(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig, _, _ any, name string) (container.CreateResponse, error) {
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: f.createID}, nil
}

func (f *fakeAPI) ContainerStart(ctx context.Context, id string, opts types.ContainerStartOptions) error {
	return nil
}

func (f *fakeAPI) ContainerAttach(ctx context.Context, id string, opts types.ContainerAttachOptions) (types.HijackedResponse, error) {
	return types.HijackedResponse{}, errors.New("not exercised in this test")
}

func (f *fakeAPI) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	return f.inspectInfo, f.inspectErr
}

func (f *fakeAPI) ContainerRemove(ctx context.Context, id string, opts types.ContainerRemoveOptions) error {
	return f.removeErr
}

func (f *fakeAPI) ImagePull(ctx context.Context, ref string, opts types.ImagePullOptions) (io.ReadCloser, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return io.NopCloser(newEmptyReader()), nil
}

func (f *fakeAPI) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{}, nil
}

func (f *fakeAPI) Close() error { return nil }

type emptyReader struct{}

func newEmptyReader() *emptyReader { return &emptyReader{} }

func (e *emptyReader) Read(p []byte) (int, error) { return 0, io.EOF }

func testClient(api dockerAPI) *Client {
	return &Client{api: api, cfg: &config.Config{MaxRAMBytes: 128 * 1024 * 1024, MaxCPUFraction: 1.0, ContainerStopTimeoutSeconds: 32}}
}

func TestCreate_WrapsErrorAsEngineError(t *testing.T) {
	c := testClient(&fakeAPI{createErr: errors.New("daemon unreachable")})
	_, err := c.Create(context.Background(), ContainerSpec{Image: "run-api-python"})

	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "create", engineErr.Op)
}

func TestCreate_ReturnsContainerID(t *testing.T) {
	c := testClient(&fakeAPI{createID: "abc123"})
	id, err := c.Create(context.Background(), ContainerSpec{Image: "run-api-python"})

	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestInspect_MissingStateIsEngineError(t *testing.T) {
	c := testClient(&fakeAPI{inspectInfo: types.ContainerJSON{}})
	_, err := c.Inspect(context.Background(), "abc123")

	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "inspect", engineErr.Op)
}

func TestInspect_ComputesExecTimeFromState(t *testing.T) {
	info := types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{
				ExitCode:   7,
				StartedAt:  "2024-01-01T00:00:00.000000000Z",
				FinishedAt: "2024-01-01T00:00:01.500000000Z",
			},
		},
	}
	c := testClient(&fakeAPI{inspectInfo: info})
	result, err := c.Inspect(context.Background(), "abc123")

	require.NoError(t, err)
	assert.Equal(t, 7, result.ExitCode)
	assert.InDelta(t, 1.5, result.ExecTime, 1e-9)
}

func TestDelete_WrapsErrorAsEngineError(t *testing.T) {
	c := testClient(&fakeAPI{removeErr: errors.New("container gone")})
	err := c.Delete(context.Background(), "abc123")

	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "delete", engineErr.Op)
}

func TestPullImage_WrapsErrorAsEngineError(t *testing.T) {
	c := testClient(&fakeAPI{pullErr: errors.New("no such image")})
	err := c.PullImage(context.Background(), "run-api-nonexistent")

	require.Error(t, err)
	var engineErr *EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "pull", engineErr.Op)
}

func TestImageName(t *testing.T) {
	assert.Equal(t, "run-api-python", ImageName("python"))
	assert.Equal(t, "run-api-go", ImageName("go"))
}
