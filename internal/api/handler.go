// Package api is a thin HTTP edge: it validates JSON, dispatches to the
// Admission Gate and Execution Engine, and maps failures to status codes.
// Routing concerns stop at this boundary.
package api

import (
	"errors"
	"net/http"

	"github.com/akshayaggarwal99/runengine/internal/admission"
	"github.com/akshayaggarwal99/runengine/internal/runctx"
	"github.com/akshayaggarwal99/runengine/internal/runner"
	"github.com/labstack/echo/v4"
)

// Version information, set via ldflags at build time.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

// RunRequest is the wire shape of POST /run/{language}'s body.
type RunRequest struct {
	Code        string   `json:"code"`
	Input       string   `json:"input"`
	Compilers   []string `json:"compilers"`
	CompileArgs []string `json:"compile_args"`
	MergeOutput bool     `json:"merge_output"`
}

// Handler wires the Admission Gate and Execution Engine to HTTP routes.
type Handler struct {
	gate   *admission.Gate
	engine *runner.Engine
}

// NewHandler builds a Handler.
func NewHandler(gate *admission.Gate, engine *runner.Engine) *Handler {
	return &Handler{gate: gate, engine: engine}
}

// RegisterRoutes attaches this Handler's routes to e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/run/:language", h.run)
	e.OPTIONS("/health_check", h.healthCheck)
	e.GET("/", h.version)
}

func (h *Handler) version(c echo.Context) error {
	return c.String(http.StatusOK, "run-api "+Version+" ("+GitCommit+")")
}

func (h *Handler) healthCheck(c echo.Context) error {
	if h.gate.Busy() {
		return c.NoContent(http.StatusNotFound)
	}
	return c.NoContent(http.StatusOK)
}

func (h *Handler) run(c echo.Context) error {
	language := c.Param("language")

	var req RunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Bad json in body"})
	}

	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Code is missing from body"})
	}

	ctx := runctx.WithScope(c.Request().Context(), language)

	var result *runner.Result
	runErr := h.gate.Do(func() error {
		var err error
		result, err = h.engine.Run(ctx, runner.Request{
			Language:        language,
			Code:            []byte(req.Code),
			Input:           []byte(req.Input),
			CompileCommands: zipCompileCommands(req.Compilers, req.CompileArgs),
			MergeOutput:     req.MergeOutput,
		})
		return err
	})

	if runErr != nil {
		if errors.Is(runErr, admission.ErrCapacityExhausted) {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "No free containers"})
		}
		if errors.Is(runErr, runner.ErrEngineError) {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Docker API error"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": runErr.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

// zipCompileCommands pairwise-joins compilers[i] and args[i] into shell
// commands, truncating to the shorter of the two slices.
func zipCompileCommands(compilers, args []string) []string {
	n := len(compilers)
	if len(args) < n {
		n = len(args)
	}
	commands := make([]string, 0, n)
	for i := 0; i < n; i++ {
		commands = append(commands, compilers[i]+" "+args[i])
	}
	return commands
}
