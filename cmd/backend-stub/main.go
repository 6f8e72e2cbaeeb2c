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

	"storefront-bff/internal/backendstub"
)

func run(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	stub := backendstub.New(backendstub.Options{
		Secret:    cmd.String("secret"),
		AccessTTL: cmd.Duration("access-ttl"),
	})

	srv := &http.Server{
		Addr:              cmd.String("addr"),
		Handler:           stub.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("Backend stub listening", "addr", srv.Addr, "password", backendstub.DefaultPassword)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "backend-stub",
		Usage:  "In-memory storefront backend for local development",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8090",
				Usage:   "Listen address",
				Sources: cli.EnvVars("STUB_ADDR"),
			},
			&cli.StringFlag{
				Name:    "secret",
				Value:   "dev-secret",
				Usage:   "HS256 signing secret, shared with the gateway",
				Sources: cli.EnvVars("JWT_SECRET"),
			},
			&cli.DurationFlag{
				Name:    "access-ttl",
				Value:   15 * time.Minute,
				Usage:   "Access token lifetime",
				Sources: cli.EnvVars("STUB_ACCESS_TTL"),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("Backend stub error", "error", err)
		os.Exit(1)
	}
}
