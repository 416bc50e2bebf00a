package auth

// Rank score thresholds used by the HTTP handlers. Rank mutations demand a
// higher score than general admin-command execution.
const (
	ScoreRankMutation = 4.5
	ScoreAdminCommand = 4
)

// Allow reports whether the principal clears the required rank score. It is
// a pure predicate: no store access, no caching, evaluated fresh per request.
func Allow(principal *Principal, minScore float64) bool {
	if principal == nil {
		return false
	}
	return principal.RankScore >= minScore
}
