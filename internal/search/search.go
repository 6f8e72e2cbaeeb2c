// Package search runs natural-language product searches and decorates
// seller results with their distance from the user.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/models"
)

// Poster is the request surface needed from apiclient.Client.
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

type SellerDistance struct {
	models.Seller
	Km      *float64 `json:"km,omitempty"`
	Display string   `json:"distance"`
}

type Result struct {
	Intent   string           `json:"intent"`
	Query    string           `json:"query"`
	Products []models.Gadget  `json:"products,omitempty"`
	Sellers  []SellerDistance `json:"sellers,omitempty"`
}

type Searcher struct {
	api      Poster
	geocoder Geocoder
	parallel int
}

// NewSearcher builds a Searcher. A nil geocoder disables distance display.
func NewSearcher(api Poster, geocoder Geocoder) *Searcher {
	return &Searcher{api: api, geocoder: geocoder, parallel: 4}
}

// Interpret sends the raw query to the backend and returns its classification.
func (s *Searcher) Interpret(ctx context.Context, query string) (*models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", apperr.ErrInvalidInput)
	}
	var res models.SearchResult
	if err := s.api.Post(ctx, "/api/search/interpret", map[string]string{"query": query}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Search interprets query and, for seller results, adds distances from
// origin. origin is nil when the user's position is unknown.
func (s *Searcher) Search(ctx context.Context, query string, origin *Point) (*Result, error) {
	res, err := s.Interpret(ctx, query)
	if err != nil {
		return nil, err
	}

	out := &Result{Intent: res.Intent, Query: strings.TrimSpace(query)}
	switch res.Intent {
	case models.IntentSellers:
		out.Sellers = s.Enrich(ctx, origin, res.Sellers)
	default:
		out.Intent = models.IntentProducts
		out.Products = res.Products
	}
	return out, nil
}

// Enrich geocodes each seller address and computes the distance from origin.
// Sellers whose distance cannot be computed keep their place in the list with
// the CannotCompute text.
func (s *Searcher) Enrich(ctx context.Context, origin *Point, sellers []models.Seller) []SellerDistance {
	out := make([]SellerDistance, len(sellers))
	for i, seller := range sellers {
		out[i] = SellerDistance{Seller: seller, Display: CannotCompute}
	}
	if origin == nil || !origin.Valid() || s.geocoder == nil {
		return out
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i := range out {
		g.Go(func() error {
			pt, err := s.geocoder.Geocode(gctx, out[i].Address)
			if err != nil {
				slog.Warn("Seller address not geocoded", "seller_id", out[i].ID, "error", err)
				return nil
			}
			km := Haversine(*origin, pt)
			out[i].Km = &km
			out[i].Display = FormatKm(km)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
