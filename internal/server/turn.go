package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "property-concierge/internal/common/errors"
	"property-concierge/internal/common/metrics"
	"property-concierge/internal/common/validation"
	"property-concierge/internal/intent"
	"property-concierge/internal/llm"
	"property-concierge/internal/models"
)

type turnRequest struct {
	UserID         string `json:"userId"`
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
}

type turnResponse struct {
	ConversationID string  `json:"conversationId"`
	PropertyID     *string `json:"propertyId"`
	Content        string  `json:"content"`
	Switched       bool    `json:"switched"`
}

// handleTurn runs one full chat exchange server-side: resolve the active
// conversation, classify the message, switch threads when the router picked
// a different destination (a property thread, or back home on a general
// message), persist the user turn exactly once, produce a reply, persist it,
// and mark the exchange complete.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if !s.enforceMethod(w, r, http.MethodPost) {
		return
	}
	ctx, span := s.obs.StartSpan(r.Context(), "chat.turn")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.respondError(w, r, err, "Failed to read request body")
		return
	}

	if err := validation.ValidateTurnRequest(body); err != nil {
		s.respondError(w, r, err, "")
		return
	}

	var req turnRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.respondError(w, r, apperrors.NewValidationError("Missing or invalid turn request"), "")
		return
	}

	// Resolve the conversation the user is currently in.
	current, err := s.currentConversation(ctx, &req)
	if err != nil {
		s.respondError(w, r, err, "Failed to resolve conversation")
		return
	}

	candidates, err := s.cache.List(ctx)
	if err != nil {
		s.respondError(w, r, err, "Failed to read from database")
		return
	}

	result := s.router.Classify(ctx, req.Message, toCandidates(candidates))
	metrics.ClassificationsTotal.WithLabelValues(string(result.Type)).Inc()

	// Route the turn. A property intent that differs from the pinned
	// property moves the exchange into that property's thread; a general
	// intent while pinned moves it back home. Routing settles before
	// anything is persisted.
	conversation := current
	switched := false
	switch {
	case result.Type == intent.TypeProperty && !pinnedTo(current, result.PropertyID):
		conversation, err = s.sessions.GetOrCreateForProperty(ctx, req.UserID, result.PropertyID)
		if err != nil {
			s.respondError(w, r, err, "Failed to resolve conversation")
			return
		}
		switched = true
	case result.Type == intent.TypeGeneral && current.PropertyID != nil:
		conversation, err = s.sessions.GetOrCreateHome(ctx, req.UserID)
		if err != nil {
			s.respondError(w, r, err, "Failed to resolve conversation")
			return
		}
		switched = true
	}

	// The user turn is persisted exactly once, after routing settles, so a
	// switched message never lands in two threads.
	if _, err := s.sessions.AppendMessage(ctx, conversation.ID, models.RoleUser, req.Message, nil); err != nil {
		s.respondError(w, r, err, "Failed to persist message")
		return
	}

	content, source, err := s.reply(ctx, conversation, req.Message, candidates)
	if err != nil {
		s.respondError(w, r, err, "Failed to generate reply")
		return
	}
	metrics.AnswersTotal.WithLabelValues(source).Inc()

	metadata, _ := json.Marshal(map[string]string{"source": source})
	if _, err := s.sessions.AppendMessage(ctx, conversation.ID, models.RoleAssistant, content, metadata); err != nil {
		s.respondError(w, r, err, "Failed to persist message")
		return
	}

	if err := s.sessions.Touch(ctx, conversation.ID); err != nil {
		s.logger.Warn("failed to touch conversation", map[string]interface{}{
			"conversationId": conversation.ID,
			"error":          err.Error(),
		})
	}

	s.respondJSON(w, http.StatusOK, turnResponse{
		ConversationID: conversation.ID,
		PropertyID:     conversation.PropertyID,
		Content:        content,
		Switched:       switched,
	})
}

// currentConversation loads the explicitly named conversation, or the
// user's home conversation when none is named.
func (s *Server) currentConversation(ctx context.Context, req *turnRequest) (models.Conversation, error) {
	if req.ConversationID != "" {
		conversation, _, err := s.sessions.SwitchTo(ctx, req.ConversationID)
		return conversation, err
	}
	return s.sessions.GetOrCreateHome(ctx, req.UserID)
}

// reply produces the assistant turn. Property threads answer strictly from
// the pinned record; the home thread converses through the model with the
// prior history.
func (s *Server) reply(ctx context.Context, conversation models.Conversation, message string, candidates []models.Property) (string, string, error) {
	if conversation.PropertyID != nil {
		property, err := s.findProperty(ctx, *conversation.PropertyID, candidates)
		if err != nil {
			return "", "", err
		}
		return s.responder.Answer(message, &property, nil), "db", nil
	}

	history, err := s.sessions.History(ctx, conversation.ID)
	if err != nil {
		return "", "", err
	}

	content, err := s.responder.Converse(ctx, history, nil)
	if err != nil {
		if errors.Is(err, llm.ErrCompletionTimeout) {
			return "", "", apperrors.NewUpstreamTimeoutError("groq")
		}
		return "", "", apperrors.NewUpstreamError("groq", err)
	}
	return content, "llm", nil
}

// findProperty prefers the already-fetched candidate list over another
// store round trip.
func (s *Server) findProperty(ctx context.Context, propertyID string, candidates []models.Property) (models.Property, error) {
	for _, p := range candidates {
		if p.ID == propertyID {
			return p, nil
		}
	}
	return s.sessions.GetProperty(ctx, propertyID)
}

func toCandidates(properties []models.Property) []models.PropertyCandidate {
	if len(properties) == 0 {
		return nil
	}
	out := make([]models.PropertyCandidate, 0, len(properties))
	for _, p := range properties {
		out = append(out, p.Candidate())
	}
	return out
}

func pinnedTo(conversation models.Conversation, propertyID string) bool {
	return conversation.PropertyID != nil && *conversation.PropertyID == propertyID
}
