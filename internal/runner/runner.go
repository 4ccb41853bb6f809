package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/akshayaggarwal99/runengine/internal/config"
	"github.com/akshayaggarwal99/runengine/internal/dockerengine"
	"github.com/akshayaggarwal99/runengine/internal/runctx"
	"github.com/rs/zerolog/log"
)

// ErrEngineError wraps any failure from the container engine (create, start,
// attach, or inspect).
var ErrEngineError = errors.New("engine error")

// Engine runs one container per Run call and guarantees cleanup on every
// termination path.
type Engine struct {
	client *dockerengine.Client
	cfg    *config.Config
}

// New builds an Execution Engine over the given Engine Client and configuration.
func New(client *dockerengine.Client, cfg *config.Config) *Engine {
	return &Engine{client: client, cfg: cfg}
}

// Run executes req.Code inside a fresh container for req.Language and
// returns the captured Result. The container is destroyed before Run
// returns, whether or not the run succeeded.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	scope := runctx.FromContext(ctx)
	scope.Tag("language", req.Language)

	image := dockerengine.ImageName(req.Language)
	env := buildEnv(req, e.cfg.ExecTimeoutSeconds)

	id, err := e.client.Create(ctx, dockerengine.ContainerSpec{Image: image, Env: env})
	if err != nil {
		scope.ReportEngineError(err)
		return nil, fmt.Errorf("%w: %v", ErrEngineError, err)
	}

	// From here on, id is non-empty: every create that returns an id is
	// followed by a delete call for that id, before Run returns, regardless
	// of which step below fails.
	defer func() {
		if derr := e.client.Delete(context.Background(), id); derr != nil {
			log.Warn().Err(derr).Str("container_id", id).Msg("failed to clean up container")
		}
	}()

	if err := e.client.Start(ctx, id); err != nil {
		scope.ReportEngineError(err)
		return nil, fmt.Errorf("%w: %v", ErrEngineError, err)
	}

	attached, err := e.client.Attach(ctx, id, e.cfg.ExecTimeout(), e.cfg.OutputByteCap)
	if err != nil {
		scope.ReportEngineError(err)
		return nil, fmt.Errorf("%w: %v", ErrEngineError, err)
	}
	if attached.Truncated {
		log.Info().Str("container_id", id).Msg("output truncated at byte cap")
	}

	inspected, err := e.client.Inspect(ctx, id)
	if err != nil {
		scope.ReportEngineError(err)
		return nil, fmt.Errorf("%w: %v", ErrEngineError, err)
	}

	return &Result{
		Stdout:   decodeLossy(attached.Stdout),
		Stderr:   decodeLossy(attached.Stderr),
		ExitCode: inspected.ExitCode,
		ExecTime: inspected.ExecTime,
	}, nil
}

// buildEnv constructs the container's environment variables.
func buildEnv(req Request, execTimeoutSeconds int) []string {
	env := []string{
		fmt.Sprintf("CODE=%s", req.Code),
		fmt.Sprintf("TIMEOUT=%d", execTimeoutSeconds),
	}

	if len(req.CompileCommands) > 0 {
		env = append(env, fmt.Sprintf("COMPILE_COMMAND=%s", strings.Join(req.CompileCommands, " && ")))
	}

	if len(req.Input) > 0 {
		env = append(env, fmt.Sprintf("INPUT=%s", ensureTrailingNewline(req.Input)))
	}

	if req.MergeOutput {
		env = append(env, "MERGE_OUTPUT=1")
	}

	return env
}

func ensureTrailingNewline(b []byte) []byte {
	if len(b) == 0 || bytes.HasSuffix(b, []byte("\n")) {
		return b
	}
	return append(b, '\n')
}

// decodeLossy decodes raw bytes as UTF-8 text, replacing invalid sequences.
func decodeLossy(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}
