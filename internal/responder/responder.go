// Package responder produces assistant replies. Property questions are
// answered only from stored property records; when nothing in the record
// clears the similarity bar the reply is a fixed apology, never a guess.
package responder

import (
	"context"
	"fmt"
	"strings"

	"property-concierge/internal/llm"
	"property-concierge/internal/match"
	"property-concierge/internal/models"
)

const (
	apologyPropertyRecord = "Sorry — I don't have information about that in the property record."
	apologyNoMatch        = "Sorry — I don't have information about that."
	noDetailsPlaceholder  = "No additional details available."

	// singlePropertyThreshold gates answers when the conversation is pinned
	// to one property; multiCandidateThreshold gates cross-property lookup.
	// Both comparisons are strictly greater-than.
	singlePropertyThreshold = 0.5
	multiCandidateThreshold = 0.55
)

// Completer is the single upstream call general conversation needs.
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

type Responder struct {
	completer Completer
	logger    Logger
}

func New(completer Completer, log Logger) *Responder {
	return &Responder{
		completer: completer,
		logger: log.With(map[string]interface{}{
			"component": "responder",
		}),
	}
}

// Answer replies to a property question without calling any model. With a
// pinned property the whole record is scored as one blob; otherwise the
// candidate list is searched for the best single match. Below threshold the
// reply is the corresponding apology.
func (r *Responder) Answer(query string, property *models.Property, candidates []models.Property) string {
	if property != nil {
		blob := strings.TrimSpace(property.Name + " " + property.Address + " " + property.Description)
		if match.Similarity(query, blob) > singlePropertyThreshold {
			details := property.Description
			if details == "" {
				details = noDetailsPlaceholder
			}
			return fmt.Sprintf("Based on the property record for %q:\n\n%s", property.Name, details)
		}
		return apologyPropertyRecord
	}

	best, ok := match.BestMatch(candidates, query)
	if !ok || best.Score <= multiCandidateThreshold {
		return apologyNoMatch
	}

	excerpt := bestExcerpt(best)
	return fmt.Sprintf("Based on our records for %q:\n\n%s", best.Property.Name, excerpt)
}

// bestExcerpt picks the text shown to the user: the matched field, then the
// record's description, address, and finally the bare name.
func bestExcerpt(best models.MatchResult) string {
	if best.Field != "" {
		return best.Field
	}
	if best.Property.Description != "" {
		return best.Property.Description
	}
	if best.Property.Address != "" {
		return best.Property.Address
	}
	return best.Property.Name
}

// Converse generates a free-form reply for home conversations. Unlike
// Answer, upstream failures surface to the caller.
func (r *Responder) Converse(ctx context.Context, history []models.Message, property *models.Property) (string, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: conversePrompt(property),
	})
	for _, m := range history {
		messages = append(messages, llm.Message{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	reply, err := r.completer.Complete(ctx, &llm.CompletionRequest{
		Messages:    messages,
		Temperature: 0.2,
		MaxTokens:   500,
	})
	if err != nil {
		r.logger.Error("conversation completion failed", map[string]interface{}{
			"error": err.Error(),
		})
		return "", err
	}
	return reply, nil
}

func conversePrompt(property *models.Property) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant for a property support service. ")
	sb.WriteString("Be concise and friendly. Only state facts you were given; if you don't know, say so.")
	if property != nil {
		sb.WriteString("\n\nThe user is asking about this property:\n")
		sb.WriteString(fmt.Sprintf("Name: %s\n", property.Name))
		if property.Address != "" {
			sb.WriteString(fmt.Sprintf("Address: %s\n", property.Address))
		}
		if property.Description != "" {
			sb.WriteString(fmt.Sprintf("Details: %s\n", property.Description))
		}
	}
	return sb.String()
}
