package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/models"
)

type ReviewInput struct {
	GadgetID string `json:"gadgetId"`
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
}

func (in ReviewInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.GadgetID, validation.Required),
		validation.Field(&in.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&in.Comment, validation.Required, validation.Length(1, 2000)),
	)
}

func (s *ServiceClient) ListReviews(ctx context.Context, gadgetID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := s.api.Get(ctx, "/api/reviews/gadget/"+url.PathEscape(gadgetID), nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// SubmitReview validates locally before sending so obviously bad input never
// reaches the backend.
func (s *ServiceClient) SubmitReview(ctx context.Context, in ReviewInput) (*models.Review, error) {
	in.Comment = strings.TrimSpace(in.Comment)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	var r models.Review
	if err := s.api.Post(ctx, "/api/reviews", in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
