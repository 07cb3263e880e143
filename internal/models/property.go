package models

import "time"

// Property is a single record from the properties table. Fields other than
// ID, Name and CreatedAt are optional and empty when absent.
type Property struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address,omitempty"`
	Description string    `json:"description,omitempty"`
	Extra       string    `json:"extra,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PropertyCandidate is the minimal shape handed to the intent router:
// just enough for the model to recognize a property, nothing more.
type PropertyCandidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Candidate returns the router-facing view of the property.
func (p Property) Candidate() PropertyCandidate {
	return PropertyCandidate{ID: p.ID, Name: p.Name, Address: p.Address}
}
