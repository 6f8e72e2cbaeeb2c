package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/apperr"
	"storefront-bff/internal/notify"
)

func (a *app) sessionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "login",
			Usage: "Sign in and store the session",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Sources: cli.EnvVars("STOREFRONT_EMAIL")},
				&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Sources: cli.EnvVars("STOREFRONT_PASSWORD")},
			},
			Action: a.action(a.login),
		},
		{
			Name:   "logout",
			Usage:  "Sign out and forget the stored session",
			Action: a.action(a.logout),
		},
		{
			Name:   "whoami",
			Usage:  "Show the signed-in account",
			Action: a.action(a.whoami),
		},
		{
			Name:      "device-token",
			Usage:     "Register this device for push notifications",
			ArgsUsage: "<token>",
			Action:    a.action(a.deviceToken),
		},
	}
}

func (a *app) login(ctx context.Context, cmd *cli.Command) error {
	resp, err := a.api.Login(ctx, apiclient.Credentials{
		Email:    cmd.String("email"),
		Password: cmd.String("password"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s)\n", resp.User.Name, resp.User.Role)
	return nil
}

func (a *app) logout(ctx context.Context, _ *cli.Command) error {
	if err := a.api.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) whoami(ctx context.Context, _ *cli.Command) error {
	claims, err := a.api.Session(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrUnauthorized) {
			fmt.Fprintln(a.out, "Not signed in")
			return nil
		}
		return err
	}

	user, err := a.svc.CurrentUser(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s <%s>\nrole: %s\n", user.Name, user.Email, claims.Role)
	if claims.ExpiresAt != nil {
		fmt.Fprintf(a.out, "token expires: %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	}
	return nil
}

func (a *app) deviceToken(ctx context.Context, cmd *cli.Command) error {
	token := cmd.Args().First()
	if token == "" {
		return fmt.Errorf("%w: device token required", apperr.ErrInvalidInput)
	}
	device := notify.NewDeviceState(a.svc)
	if err := device.Set(ctx, token); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Device registered for notifications")
	return nil
}
