package backendstub

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"storefront-bff/internal/models"
)

type named interface {
	models.Category | models.Brand
}

func sortedNamed[T named](m map[string]T, id func(T) string) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}

func nameFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	var in struct {
		Name string `json:"name"`
	}
	if !decode(w, r, &in) {
		return "", false
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Name is required")
		return "", false
	}
	return in.Name, true
}

func (s *Server) listCategories(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, sortedNamed(s.categories, func(c models.Category) string { return c.ID }))
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := nameFrom(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			writeError(w, http.StatusConflict, "DUPLICATE", "Category already exists")
			return
		}
	}
	c := models.Category{ID: "c-" + uuid.NewString()[:8], Name: name}
	s.categories[c.ID] = c
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := nameFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}
	c := models.Category{ID: id, Name: name}
	s.categories[id] = c
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Category not found")
		return
	}
	delete(s.categories, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listBrands(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, sortedNamed(s.brands, func(b models.Brand) string { return b.ID }))
}

func (s *Server) createBrand(w http.ResponseWriter, r *http.Request) {
	name, ok := nameFrom(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.brands {
		if strings.EqualFold(b.Name, name) {
			writeError(w, http.StatusConflict, "DUPLICATE", "Brand already exists")
			return
		}
	}
	b := models.Brand{ID: "b-" + uuid.NewString()[:8], Name: name}
	s.brands[b.ID] = b
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) updateBrand(w http.ResponseWriter, r *http.Request) {
	name, ok := nameFrom(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[id]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Brand not found")
		return
	}
	b := models.Brand{ID: id, Name: name}
	s.brands[id] = b
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) deleteBrand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.brands[id]; !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Brand not found")
		return
	}
	delete(s.brands, id)
	w.WriteHeader(http.StatusNoContent)
}
