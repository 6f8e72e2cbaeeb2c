package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"storefront-bff/internal/api"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/cache"
	"storefront-bff/internal/config"
	"storefront-bff/internal/notify"
	"storefront-bff/internal/search"
)

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	slog.Info("Starting API Gateway", "port", cfg.HTTPPort, "env", cfg.Env, "backend", cfg.APIBaseURL)

	redisClient, err := cache.NewClient(cfg.RedisAddr, cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	defer redisClient.Close()
	slog.Info("Connected to Redis", "addr", cfg.RedisAddr)

	broker := notify.NewBroker()
	defer broker.Close()

	geocoder := search.NewHTTPGeocoder(cfg.GeocoderURL, search.WithCache(redisClient, 24*time.Hour))

	handler := api.NewHandler(cfg.APIBaseURL, redisClient, broker,
		api.WithGeocoder(geocoder),
		api.WithAuthExpiredCode(cfg.AuthExpiredCode),
	)
	router := api.NewRouter(handler, auth.NewMiddleware(cfg.JWTSecret))

	httpServer := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-gCtx.Done():
		}

		// Event streams only end when the broker closes them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Server stopped")
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "api-gateway",
		Usage:  "Storefront backend-for-frontend gateway",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional YAML config file",
				Value:   "config/config.yaml",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("Gateway error", "error", err)
		os.Exit(1)
	}
}
