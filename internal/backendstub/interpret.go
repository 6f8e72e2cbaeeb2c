package backendstub

import (
	"net/http"
	"strings"

	"storefront-bff/internal/models"
)

var sellerWords = map[string]bool{
	"seller": true, "sellers": true, "store": true, "stores": true,
	"shop": true, "shops": true, "near": true, "nearby": true,
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "me": true, "show": true,
	"find": true, "with": true, "and": true, "i": true, "want": true, "some": true,
}

// interpret classifies a free-text query as a product or seller search.
func (s *Server) interpret(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Query string `json:"query"`
	}
	if !decode(w, r, &in) {
		return
	}
	words := strings.Fields(strings.ToLower(in.Query))
	if len(words) == 0 {
		writeError(w, http.StatusBadRequest, "EMPTY_QUERY", "Say or type what you are looking for")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, word := range words {
		if sellerWords[word] {
			writeJSON(w, http.StatusOK, models.SearchResult{Intent: models.IntentSellers, Products: []models.Gadget{}, Sellers: s.sellers})
			return
		}
	}

	products := []models.Gadget{}
	for _, g := range s.sortedGadgets() {
		text := strings.ToLower(g.Name + " " + g.Description)
		for _, word := range words {
			if stopWords[word] || len(word) < 3 {
				continue
			}
			if strings.Contains(text, strings.TrimSuffix(word, "s")) {
				products = append(products, g)
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, models.SearchResult{Intent: models.IntentProducts, Products: products, Sellers: []models.Seller{}})
}
