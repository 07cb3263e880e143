package server

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/common/metrics"
	"property-concierge/internal/common/validation"
	"property-concierge/internal/intent"
	"property-concierge/internal/models"
)

type detectRequest struct {
	Message    string                     `json:"message"`
	Properties []models.PropertyCandidate `json:"properties"`
}

type detectResponse struct {
	Type       string  `json:"type"`
	PropertyID *string `json:"propertyId"`
}

// handleDetectProperty classifies one message against the supplied
// candidate list. Classification failures never surface: the endpoint
// always answers 200 with the general route unless the request itself is
// invalid or the model credentials are missing.
func (s *Server) handleDetectProperty(w http.ResponseWriter, r *http.Request) {
	if !s.enforceMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, r, err, "Failed to read request body")
		return
	}

	if err := validation.ValidateDetectRequest(body); err != nil {
		s.respondError(w, r, err, "")
		return
	}

	var req detectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondError(w, r, apperrors.NewValidationError(`Missing or invalid "message" field`), "")
		return
	}

	if len(req.Properties) == 0 {
		s.respondJSON(w, http.StatusOK, generalDetectResponse())
		return
	}

	if !s.llmClient.Configured() {
		s.respondError(w, r, apperrors.NewConfigurationError("GROQ_API_KEY"), "LLM configuration missing")
		return
	}

	result := s.router.Classify(r.Context(), req.Message, req.Properties)
	metrics.ClassificationsTotal.WithLabelValues(string(result.Type)).Inc()

	s.respondJSON(w, http.StatusOK, toDetectResponse(result))
}

func generalDetectResponse() detectResponse {
	return detectResponse{Type: string(intent.TypeGeneral), PropertyID: nil}
}

func toDetectResponse(result intent.Intent) detectResponse {
	if result.Type == intent.TypeProperty {
		id := result.PropertyID
		return detectResponse{Type: string(intent.TypeProperty), PropertyID: &id}
	}
	return generalDetectResponse()
}
