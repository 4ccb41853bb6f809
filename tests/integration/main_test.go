// Package integration exercises the run-api server's HTTP edge against a
// real container engine: TestMain bootstraps the server once, and subtests
// hit it over HTTP.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/akshayaggarwal99/runengine/internal/admission"
	"github.com/akshayaggarwal99/runengine/internal/api"
	"github.com/akshayaggarwal99/runengine/internal/config"
	"github.com/akshayaggarwal99/runengine/internal/dockerengine"
	"github.com/akshayaggarwal99/runengine/internal/runner"
	"github.com/labstack/echo/v4"
)

const (
	ServerPort = "8091" // Different port than default to avoid conflicts
	BaseURL    = "http://localhost:" + ServerPort
)

var testGate *admission.Gate

func TestMain(m *testing.M) {
	cfg := &config.Config{
		SocketPath:                  "/var/run/docker.sock",
		APIVersion:                  "1.43",
		MaxRAMBytes:                 128 * 1024 * 1024,
		MaxCPUFraction:              1.0,
		MaxConcurrency:              2,
		ExecTimeoutSeconds:          30,
		ContainerStopTimeoutSeconds: 32,
		OutputByteCap:               1 << 20,
	}

	engineClient, err := dockerengine.NewClient(cfg)
	if err != nil {
		fmt.Printf("Failed to init engine client: %v\n", err)
		os.Exit(1)
	}

	if err := engineClient.Healthy(context.Background()); err != nil {
		fmt.Printf("Container engine unreachable, skipping integration tests: %v\n", err)
		os.Exit(0)
	}

	testGate = admission.New(cfg.MaxConcurrency)
	engine := runner.New(engineClient, cfg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := api.NewHandler(testGate, engine)
	h.RegisterRoutes(e)

	go func() {
		if err := e.Start(":" + ServerPort); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed: %v\n", err)
			os.Exit(1)
		}
	}()

	waitForServer()

	code := m.Run()

	engineClient.Close()
	e.Shutdown(context.Background())
	os.Exit(code)
}

func waitForServer() {
	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest(http.MethodOptions, BaseURL+"/health_check", nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(300 * time.Millisecond)
	}
	fmt.Println("Timeout waiting for test server")
	os.Exit(1)
}
