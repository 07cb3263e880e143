package match

import "property-concierge/internal/models"

// ScoreProperty scores a single property against a query. The candidate
// fields are tried in a fixed order (name, address, description, extra) and
// the first field reaching the maximum score wins ties. Missing fields are
// empty strings and score 0.
func ScoreProperty(p models.Property, query string) models.MatchResult {
	fields := []string{p.Name, p.Address, p.Description, p.Extra}

	best := models.MatchResult{Property: p}
	for _, f := range fields {
		if s := Similarity(query, f); s > best.Score {
			best.Score = s
			best.Field = f
		}
	}
	return best
}

// BestMatch selects the single best match across a list of properties by
// strictly greater score; the first property to reach the best score wins.
// ok is false when the list is empty.
func BestMatch(properties []models.Property, query string) (models.MatchResult, bool) {
	if len(properties) == 0 {
		return models.MatchResult{}, false
	}

	best := models.MatchResult{}
	found := false
	for _, p := range properties {
		r := ScoreProperty(p, query)
		if !found || r.Score > best.Score {
			best = r
			found = true
		}
	}
	return best, found
}
