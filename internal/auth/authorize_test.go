package auth

import "testing"

func TestAllow(t *testing.T) {
	cases := []struct {
		name      string
		principal *Principal
		minScore  float64
		want      bool
	}{
		{"nil principal", nil, 0, false},
		{"zero score below admin", &Principal{}, ScoreAdminCommand, false},
		{"exactly rank mutation", &Principal{RankScore: 4.5}, ScoreRankMutation, true},
		{"just below rank mutation", &Principal{RankScore: 4.49}, ScoreRankMutation, false},
		{"exactly admin command", &Principal{RankScore: 4}, ScoreAdminCommand, true},
		{"below admin command", &Principal{RankScore: 3.9}, ScoreAdminCommand, false},
		{"admin score cannot mutate ranks", &Principal{RankScore: 4}, ScoreRankMutation, false},
		{"operator clears everything", &Principal{RankScore: 5}, ScoreRankMutation, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Allow(tc.principal, tc.minScore); got != tc.want {
				t.Fatalf("Allow(%+v, %v) = %v, want %v", tc.principal, tc.minScore, got, tc.want)
			}
		})
	}
}
