package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/apperr"
	"storefront-bff/internal/cache"
	"storefront-bff/internal/config"
	"storefront-bff/internal/services"
	"storefront-bff/internal/telemetry"
	"storefront-bff/internal/tokenstore"
)

// app holds what every command needs once configuration is loaded.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg     *config.Config
	store   tokenstore.Store
	api     *apiclient.Client
	svc     *services.ServiceClient
	closers []func() error
}

// action wraps a command body with configuration loading and cleanup.
func (a *app) action(fn cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := a.connect(cmd); err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd)
	}
}

func (a *app) connect(cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	a.cfg = cfg

	slog.SetDefault(slog.New(slog.NewJSONHandler(a.errOut, &slog.HandlerOptions{Level: cfg.LogLevel})))

	store, err := a.tokenStore(cfg)
	if err != nil {
		return err
	}
	a.store = store

	a.api = apiclient.New(cfg.APIBaseURL, store,
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout, Transport: telemetry.Transport(nil)}),
		apiclient.WithAuthExpiredCode(cfg.AuthExpiredCode),
		apiclient.WithSignOutHook(func() {
			fmt.Fprintln(a.errOut, "Your session has ended. Run `storefront login` to sign in again.")
		}),
	)
	a.svc = services.NewServiceClient(a.api)
	return nil
}

func (a *app) tokenStore(cfg *config.Config) (tokenstore.Store, error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return tokenstore.NewMemoryStore(tokenstore.Tokens{}), nil
	case config.TokenStoreRedis:
		client, err := cache.NewClient(cfg.RedisAddr, 0)
		if err != nil {
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		return tokenstore.NewRedisStore(client, cfg.Env), nil
	default:
		return tokenstore.NewFileStore(cfg.TokenFile), nil
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}

func newApp(in io.Reader, out, errOut io.Writer) *cli.Command {
	a := &app{in: in, out: out, errOut: errOut}
	return &cli.Command{
		Name:  "storefront",
		Usage: "Browse and manage the gadget storefront from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to an optional YAML config file",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: append(append(a.sessionCommands(), a.shopCommands()...), a.searchCommands()...),
	}
}

// message is the text shown for a failed command: the backend's reason when
// there is one, the error itself otherwise.
func message(err error) string {
	var apiErr *apperr.APIError
	if errors.As(err, &apiErr) || errors.Is(err, apperr.ErrSessionExpired) || errors.Is(err, apperr.ErrUnavailable) {
		return apperr.Reason(err)
	}
	return err.Error()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdin, os.Stdout, os.Stderr).Run(ctx, os.Args); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", message(err))
		os.Exit(1)
	}
}
