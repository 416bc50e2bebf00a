package game

import "context"

// BuiltinRanks is the fixed admin hierarchy seeded on first start. Scores
// are compared by the authorization gate; names and permission tags pass
// through to the UI.
var BuiltinRanks = []Rank{
	{RankScore: 5, RankName: "41 | Supreme Creator", Permissions: []string{"all"}},
	{RankScore: 4.999, RankName: "40 | Supreme Real Co-Creator", Permissions: []string{"admin", "moderate", "kick", "ban"}},
	{RankScore: 4.9975, RankName: "38.5 | Supreme Head of Foundation", Permissions: []string{"admin", "moderate", "kick"}},
	{RankScore: 4.9875, RankName: "39 | Supreme Founder of Development Creation", Permissions: []string{"admin", "moderate", "kick"}},
	{RankScore: 4.98, RankName: "38 | Supreme King of Kings", Permissions: []string{"admin", "moderate", "kick"}},
	{RankScore: 4.967, RankName: "37.5 | Supreme Liaison of Power", Permissions: []string{"admin", "moderate"}},
	{RankScore: 4.96, RankName: "36 | Supreme 26.5 Lord of Foundation", Permissions: []string{"admin", "moderate"}},
	{RankScore: 4.955, RankName: "36 | Supreme 10.5 Office Director", Permissions: []string{"admin", "moderate"}},
	{RankScore: 4.952, RankName: "36.5 | Supreme Meta Administrator", Permissions: []string{"admin", "moderate"}},
	{RankScore: 4.94, RankName: "36 | Supreme Galactic Administration", Permissions: []string{"admin", "moderate"}},
	{RankScore: 4.936, RankName: "33 | Supreme Mega King", Permissions: []string{"moderate"}},
	{RankScore: 4.933, RankName: "33 | Supreme Super Omega King", Permissions: []string{"moderate"}},
	{RankScore: 4.92, RankName: "35 | Supreme Extra King", Permissions: []string{"moderate"}},
	{RankScore: 4.915, RankName: "34 | Supreme Ultra King", Permissions: []string{"moderate"}},
	{RankScore: 4.91, RankName: "26 | Supreme Sheriff", Permissions: []string{"kick", "warn"}},
	{RankScore: 4.906, RankName: "34 | Supreme Hyper King", Permissions: []string{"moderate"}},
	{RankScore: 4.855, RankName: "10 | Supreme Owner", Permissions: []string{"kick"}},
	{RankScore: 1, RankName: "1 | Supreme VIP", Permissions: []string{"vip"}},
	{RankScore: 0, RankName: "NonAdmin", Permissions: []string{}},
}

// EnsureBuiltinRanks seeds the hierarchy once. A store that already holds
// ranks is left untouched, so re-running is safe.
func EnsureBuiltinRanks(ctx context.Context, store Store) error {
	existing, err := store.ListRanks(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, r := range BuiltinRanks {
		rank := r
		if err := store.CreateRank(ctx, &rank); err != nil {
			return err
		}
	}
	return nil
}
