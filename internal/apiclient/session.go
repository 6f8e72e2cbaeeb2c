package apiclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
	"storefront-bff/internal/tokenstore"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, validation.Required, validation.By(func(v any) error {
			if s, _ := v.(string); !strings.Contains(s, "@") {
				return fmt.Errorf("must be an email address")
			}
			return nil
		})),
		validation.Field(&c.Password, validation.Required),
	)
}

// Login exchanges credentials for a token pair and persists it.
func (c *Client) Login(ctx context.Context, creds Credentials) (*models.LoginResponse, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	var resp models.LoginResponse
	if err := c.Post(ctx, "/api/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}

	if err := c.store.Save(ctx, tokenstore.Tokens{Token: resp.Token, RefreshToken: resp.RefreshToken}); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &resp, nil
}

// Logout tells the backend (best effort) and clears local credentials.
func (c *Client) Logout(ctx context.Context) error {
	tokens, err := c.store.Load(ctx)
	if err == nil && !tokens.Empty() {
		if err := c.Post(ctx, "/api/auth/logout", map[string]string{tokenstore.KeyRefreshToken: tokens.RefreshToken}, nil); err != nil {
			slog.Warn("Backend logout failed", "error", err)
		}
	}
	return c.store.Clear(ctx)
}

// Session decodes the stored bearer token. It returns apperr.ErrUnauthorized
// when signed out.
func (c *Client) Session(ctx context.Context) (*auth.Claims, error) {
	tokens, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if tokens.Empty() {
		return nil, apperr.ErrUnauthorized
	}
	return auth.ParseClaims(tokens.Token)
}
