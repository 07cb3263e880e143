package server

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/common/metrics"
	"property-concierge/internal/common/validation"
	"property-concierge/internal/models"
)

const maxBodyBytes = 1 << 20

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Text    string `json:"text"`
}

type chatRequest struct {
	Messages   []chatMessage     `json:"messages"`
	Property   *models.Property  `json:"property"`
	Properties []models.Property `json:"properties"`
}

type chatResponse struct {
	Content string `json:"content"`
}

// handleChat answers the latest user message from property records only.
// It never calls the model: below-threshold queries get a fixed apology.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.enforceMethod(w, r, http.MethodPost) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, r, err, "Failed to read request body")
		return
	}

	if err := validation.ValidateChatRequest(body); err != nil {
		s.respondError(w, r, err, "")
		return
	}

	req, err := decodeChatRequest(body)
	if err != nil {
		s.respondError(w, r, err, "")
		return
	}

	query := lastUserMessage(req.Messages)

	// A property supplied directly by the caller pins the answer to that
	// record; no candidate lookup happens on this path.
	if req.Property != nil && req.Property.ID != "" {
		content := s.responder.Answer(query, req.Property, nil)
		metrics.AnswersTotal.WithLabelValues(answerOutcome(content)).Inc()
		s.respondJSON(w, http.StatusOK, chatResponse{Content: content})
		return
	}

	// A caller-supplied candidate list is preferred over the store; it is
	// typically the smaller, fresher set the client already holds.
	candidates := req.Properties
	if len(candidates) == 0 {
		candidates, err = s.cache.List(r.Context())
		if err != nil {
			s.respondError(w, r, err, "Failed to read from database")
			return
		}
	}

	content := s.responder.Answer(query, nil, candidates)
	metrics.AnswersTotal.WithLabelValues(answerOutcome(content)).Inc()
	s.respondJSON(w, http.StatusOK, chatResponse{Content: content})
}

func decodeChatRequest(body []byte) (*chatRequest, error) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, apperrors.NewValidationError(`Missing or invalid "messages" array`)
	}
	return &req, nil
}

// lastUserMessage walks the transcript backwards to the newest user turn.
// Clients send either content or text; content wins when both are present.
func lastUserMessage(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != string(models.RoleUser) {
			continue
		}
		if messages[i].Content != "" {
			return messages[i].Content
		}
		return messages[i].Text
	}
	return ""
}

func answerOutcome(content string) string {
	if len(content) >= 5 && content[:5] == "Sorry" {
		return "apology"
	}
	return "db"
}
