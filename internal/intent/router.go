// Package intent classifies a user message as either general conversation or
// a question about one known property. Classification is best-effort: every
// failure mode resolves to the general route rather than an error.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"property-concierge/internal/llm"
	"property-concierge/internal/models"
)

// Type is the routing decision for one message.
type Type string

const (
	TypeGeneral  Type = "general"
	TypeProperty Type = "property"
)

// Intent is the resolved route. PropertyID is set only for TypeProperty.
type Intent struct {
	Type       Type
	PropertyID string
}

// General returns the fail-safe route.
func General() Intent {
	return Intent{Type: TypeGeneral}
}

// ForProperty returns a property route for a known property id.
func ForProperty(id string) Intent {
	return Intent{Type: TypeProperty, PropertyID: id}
}

// Completer is the single upstream call the router needs.
type Completer interface {
	Complete(ctx context.Context, req *llm.CompletionRequest) (string, error)
}

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

type Router struct {
	completer Completer
	logger    Logger
}

func NewRouter(completer Completer, log Logger) *Router {
	return &Router{
		completer: completer,
		logger: log.With(map[string]interface{}{
			"component": "intent",
		}),
	}
}

// classifierReply is the strict contract the upstream model must honor.
type classifierReply struct {
	Type       string  `json:"type"`
	PropertyID *string `json:"propertyId"`
}

// Classify routes one message against the candidate list. It never returns
// an error: with no candidates there is nothing to match and no upstream
// call is made; any upstream failure, malformed reply, or unknown property
// id falls back to the general route.
func (r *Router) Classify(ctx context.Context, message string, candidates []models.PropertyCandidate) Intent {
	if len(candidates) == 0 {
		return General()
	}

	reply, err := r.completer.Complete(ctx, &llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: "system", Content: buildClassifierPrompt(candidates)},
			{Role: "user", Content: message},
		},
		Temperature: 0,
		MaxTokens:   100,
	})
	if err != nil {
		r.logger.Warn("classification failed, routing to general", map[string]interface{}{
			"error": err.Error(),
		})
		return General()
	}

	var parsed classifierReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &parsed); err != nil {
		r.logger.Warn("classifier reply was not valid JSON, routing to general", map[string]interface{}{
			"reply": reply,
		})
		return General()
	}

	switch Type(parsed.Type) {
	case TypeGeneral:
		return General()
	case TypeProperty:
		if parsed.PropertyID == nil || *parsed.PropertyID == "" {
			return General()
		}
		for _, c := range candidates {
			if c.ID == *parsed.PropertyID {
				return ForProperty(c.ID)
			}
		}
		r.logger.Warn("classifier returned unknown property id, routing to general", map[string]interface{}{
			"propertyId": *parsed.PropertyID,
		})
		return General()
	default:
		r.logger.Warn("classifier returned unknown type, routing to general", map[string]interface{}{
			"type": parsed.Type,
		})
		return General()
	}
}

func buildClassifierPrompt(candidates []models.PropertyCandidate) string {
	var sb strings.Builder
	sb.WriteString("You are an intent classifier for a property support assistant.\n")
	sb.WriteString("Decide whether the user's message is about one of the known properties below or is general conversation.\n\n")
	sb.WriteString("Known properties (id: name (address)):\n")
	for _, c := range candidates {
		address := c.Address
		if address == "" {
			address = "N/A"
		}
		sb.WriteString(fmt.Sprintf("- %s: %s (%s)\n", c.ID, c.Name, address))
	}
	sb.WriteString("\nRespond with ONLY a JSON object, no other text:\n")
	sb.WriteString(`{"type": "property", "propertyId": "<id>"} or {"type": "general", "propertyId": null}`)
	return sb.String()
}
