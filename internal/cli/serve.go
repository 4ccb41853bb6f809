package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akshayaggarwal99/runengine/internal/admission"
	"github.com/akshayaggarwal99/runengine/internal/api"
	"github.com/akshayaggarwal99/runengine/internal/config"
	"github.com/akshayaggarwal99/runengine/internal/controlplane"
	"github.com/akshayaggarwal99/runengine/internal/dockerengine"
	"github.com/akshayaggarwal99/runengine/internal/runner"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run-api server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "HTTP server port")
	RootCmd.AddCommand(serveCmd)
}

func runServer() {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.Error().Err(err).Msg("Failed to initialize Sentry")
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Info().Str("port", port).Int("max_concurrency", cfg.MaxConcurrency).Msg("🗳️  Starting run-api server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	engineClient, err := dockerengine.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize container engine client")
	}
	defer engineClient.Close()

	ctxTimeout, cancelTimeout := context.WithTimeout(ctx, 5*time.Second)
	if err := engineClient.Healthy(ctxTimeout); err != nil {
		log.Fatal().Err(err).Msg("Container engine health check failed")
	}
	cancelTimeout()

	gate := admission.New(cfg.MaxConcurrency)
	engine := runner.New(engineClient, cfg)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	h := api.NewHandler(gate, engine)
	h.RegisterRoutes(e)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", port).Msg("🚀 Server listening")
		serverErr <- e.Start(":" + port)
	}()

	listener := controlplane.New(cfg.RedisHost, cfg.RedisPort, engineClient)
	if err := listener.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Control-plane listener failed to start, continuing without it")
	} else {
		defer listener.Close()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
	case err := <-serverErr:
		if err != nil {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}
}
