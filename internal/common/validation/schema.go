// Package validation checks request bodies against compiled JSON schemas
// before any handler logic runs.
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	apperrors "property-concierge/internal/common/errors"
)

const chatRequestSchema = `{
	"type": "object",
	"properties": {
		"messages": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"role": {"type": "string"},
					"content": {"type": "string"},
					"text": {"type": "string"}
				}
			}
		},
		"properties": {
			"type": "array",
			"items": {"type": "object"}
		},
		"property": {"type": ["object", "null"]}
	},
	"required": ["messages"]
}`

const detectRequestSchema = `{
	"type": "object",
	"properties": {
		"message": {"type": "string", "minLength": 1},
		"properties": {
			"type": "array",
			"items": {"type": "object"}
		}
	},
	"required": ["message"]
}`

const turnRequestSchema = `{
	"type": "object",
	"properties": {
		"userId": {"type": "string", "minLength": 1},
		"message": {"type": "string", "minLength": 1},
		"conversationId": {"type": "string"}
	},
	"required": ["userId", "message"]
}`

var (
	chatSchema   = gojsonschema.NewStringLoader(chatRequestSchema)
	detectSchema = gojsonschema.NewStringLoader(detectRequestSchema)
	turnSchema   = gojsonschema.NewStringLoader(turnRequestSchema)

	compiledChat   *gojsonschema.Schema
	compiledDetect *gojsonschema.Schema
	compiledTurn   *gojsonschema.Schema
)

func init() {
	var err error
	if compiledChat, err = gojsonschema.NewSchema(chatSchema); err != nil {
		panic(fmt.Sprintf("invalid chat request schema: %v", err))
	}
	if compiledDetect, err = gojsonschema.NewSchema(detectSchema); err != nil {
		panic(fmt.Sprintf("invalid detect request schema: %v", err))
	}
	if compiledTurn, err = gojsonschema.NewSchema(turnSchema); err != nil {
		panic(fmt.Sprintf("invalid turn request schema: %v", err))
	}
}

// ValidateChatRequest checks a /chat body. The caller-facing message is a
// fixed literal regardless of which constraint failed.
func ValidateChatRequest(body []byte) error {
	return validate(compiledChat, body, `Missing or invalid "messages" array`)
}

// ValidateDetectRequest checks a /detect-property body.
func ValidateDetectRequest(body []byte) error {
	return validate(compiledDetect, body, `Missing or invalid "message" field`)
}

// ValidateTurnRequest checks a /turn body.
func ValidateTurnRequest(body []byte) error {
	return validate(compiledTurn, body, `Missing or invalid turn request`)
}

func validate(schema *gojsonschema.Schema, body []byte, message string) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		// Malformed JSON fails the same way a missing field does.
		return apperrors.NewValidationError(message)
	}
	if !result.Valid() {
		return apperrors.NewValidationError(message)
	}
	return nil
}
