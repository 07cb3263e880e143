package server

import (
	"net/http"

	"property-concierge/internal/models"
)

type propertiesResponse struct {
	Properties []models.Property `json:"properties"`
}

// handleProperties lists known properties in creation order, served from
// the cache when warm.
func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	if !s.enforceMethod(w, r, http.MethodGet) {
		return
	}

	properties, err := s.cache.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, "Failed to read from database")
		return
	}
	if properties == nil {
		properties = []models.Property{}
	}

	s.respondJSON(w, http.StatusOK, propertiesResponse{Properties: properties})
}
