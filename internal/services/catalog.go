package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"storefront-bff/internal/apperr"
	"storefront-bff/internal/models"
)

// Category and brand management is only reachable for manager and admin
// tokens; the backend enforces that.

func (s *ServiceClient) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cs []models.Category
	if err := s.api.Get(ctx, "/api/categories", nil, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *ServiceClient) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	var c models.Category
	if err := s.api.Post(ctx, "/api/categories", map[string]string{"name": name}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ServiceClient) UpdateCategory(ctx context.Context, id, name string) (*models.Category, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	var c models.Category
	if err := s.api.Put(ctx, "/api/categories/"+url.PathEscape(id), map[string]string{"name": name}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ServiceClient) DeleteCategory(ctx context.Context, id string) error {
	return s.api.Delete(ctx, "/api/categories/"+url.PathEscape(id))
}

func (s *ServiceClient) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var bs []models.Brand
	if err := s.api.Get(ctx, "/api/brands", nil, &bs); err != nil {
		return nil, err
	}
	return bs, nil
}

func (s *ServiceClient) CreateBrand(ctx context.Context, name string) (*models.Brand, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	var b models.Brand
	if err := s.api.Post(ctx, "/api/brands", map[string]string{"name": name}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *ServiceClient) UpdateBrand(ctx context.Context, id, name string) (*models.Brand, error) {
	name, err := requireName(name)
	if err != nil {
		return nil, err
	}
	var b models.Brand
	if err := s.api.Put(ctx, "/api/brands/"+url.PathEscape(id), map[string]string{"name": name}, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *ServiceClient) DeleteBrand(ctx context.Context, id string) error {
	return s.api.Delete(ctx, "/api/brands/"+url.PathEscape(id))
}

func requireName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", apperr.ErrInvalidInput)
	}
	return name, nil
}
