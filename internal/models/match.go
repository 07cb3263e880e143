package models

// MatchResult is the best-scoring field of a property for a query. It is
// derived per request and never persisted. Field holds the text of the
// field that produced the score, not its column name.
type MatchResult struct {
	Property Property
	Score    float64
	Field    string
}
