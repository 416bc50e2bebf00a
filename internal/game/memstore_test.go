package game

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestUpsertUserIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	first, err := store.UpsertUser(ctx, UpsertUser{ID: "discord-1", Username: "yaniselpror", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if first.RankName != "NonAdmin" || first.RankScore != 0 {
		t.Fatalf("fresh user must start unranked: %+v", first)
	}

	// A rank assignment must survive later logins.
	if _, err := store.UpdateUserRank(ctx, "discord-1", 4.5, "Head Administration"); err != nil {
		t.Fatalf("UpdateUserRank: %v", err)
	}
	second, err := store.UpsertUser(ctx, UpsertUser{ID: "discord-1", Username: "yanis_renamed", Email: "b@example.com"})
	if err != nil {
		t.Fatalf("UpsertUser again: %v", err)
	}
	if second.Username != "yanis_renamed" || second.Email != "b@example.com" {
		t.Fatalf("identity fields must be overwritten: %+v", second)
	}
	if second.RankScore != 4.5 || second.RankName != "Head Administration" {
		t.Fatalf("rank fields must be preserved across logins: %+v", second)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("CreatedAt must not move on upsert: %v vs %v", second.CreatedAt, first.CreatedAt)
	}
}

func TestUpsertUserRequiresID(t *testing.T) {
	store := NewMemStore()
	if _, err := store.UpsertUser(context.Background(), UpsertUser{Username: "x"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateUserRankUnknownUser(t *testing.T) {
	store := NewMemStore()
	if _, err := store.UpdateUserRank(context.Background(), "missing", 4, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureBuiltinRanksIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if err := EnsureBuiltinRanks(ctx, store); err != nil {
		t.Fatalf("EnsureBuiltinRanks: %v", err)
	}
	ranks, err := store.ListRanks(ctx)
	if err != nil {
		t.Fatalf("ListRanks: %v", err)
	}
	if len(ranks) != len(BuiltinRanks) {
		t.Fatalf("expected %d ranks, got %d", len(BuiltinRanks), len(ranks))
	}
	if ranks[0].RankName != "41 | Supreme Creator" || ranks[0].RankScore != 5 {
		t.Fatalf("list must be ordered by score descending: %+v", ranks[0])
	}

	if err := EnsureBuiltinRanks(ctx, store); err != nil {
		t.Fatalf("EnsureBuiltinRanks again: %v", err)
	}
	ranks, err = store.ListRanks(ctx)
	if err != nil {
		t.Fatalf("ListRanks: %v", err)
	}
	if len(ranks) != len(BuiltinRanks) {
		t.Fatalf("reseeding must be a no-op, got %d ranks", len(ranks))
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	for _, u := range []UpsertUser{
		{ID: "u1", Username: "alpha"},
		{ID: "u2", Username: "bravo"},
		{ID: "u3", Username: "charlie"},
	} {
		if _, err := store.UpsertUser(ctx, u); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}
	if _, err := store.SetUserBanned(ctx, "u3", true); err != nil {
		t.Fatalf("SetUserBanned: %v", err)
	}

	tycoons := []*Tycoon{
		{OwnerID: "u1", Name: "Fort Alpha", Resources: Resources{Crystals: 100}, IsActive: true},
		{OwnerID: "u2", Name: "Fort Bravo", Resources: Resources{Crystals: 250}, IsActive: true},
		{OwnerID: "u2", Name: "Old Fort", Resources: Resources{Crystals: 999}, IsActive: false},
	}
	for _, ty := range tycoons {
		if err := store.CreateTycoon(ctx, ty); err != nil {
			t.Fatalf("CreateTycoon: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.OnlinePlayers != 2 {
		t.Fatalf("banned users must not count as online, got %d", stats.OnlinePlayers)
	}
	if stats.ActiveTycoons != 2 {
		t.Fatalf("expected 2 active tycoons, got %d", stats.ActiveTycoons)
	}
	// Revenue counts every tycoon's crystals, active or not.
	if want := int64((100 + 250 + 999) * 10); stats.TotalRevenue != want {
		t.Fatalf("expected revenue %d, got %d", want, stats.TotalRevenue)
	}
}

func TestActivityOrderingAndLimit(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		store.SetClock(func() time.Time { return ts })
		if err := store.AppendActivity(ctx, &ActivityLog{UserID: "u1", Action: "admin_command"}); err != nil {
			t.Fatalf("AppendActivity: %v", err)
		}
	}

	entries, err := store.RecentActivity(ctx, 3)
	if err != nil {
		t.Fatalf("RecentActivity: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.After(entries[i-1].Timestamp) {
			t.Fatalf("entries must be newest first: %v before %v", entries[i-1].Timestamp, entries[i].Timestamp)
		}
	}
}

func TestCaptureTerritory(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	territory := &Territory{Name: "Crystal Mine", Team: "red", IsContested: true}
	if err := store.CreateTerritory(ctx, territory); err != nil {
		t.Fatalf("CreateTerritory: %v", err)
	}

	captured, err := store.CaptureTerritory(ctx, territory.ID, "u1", "blue")
	if err != nil {
		t.Fatalf("CaptureTerritory: %v", err)
	}
	if captured.ControlledBy != "u1" || captured.Team != "blue" {
		t.Fatalf("capture fields not applied: %+v", captured)
	}
	if captured.IsContested {
		t.Fatal("capture must settle the contest")
	}
	if captured.LastCaptured.IsZero() {
		t.Fatal("LastCaptured must be stamped")
	}

	blue, err := store.TerritoriesByTeam(ctx, "blue")
	if err != nil {
		t.Fatalf("TerritoriesByTeam: %v", err)
	}
	if len(blue) != 1 || blue[0].ID != territory.ID {
		t.Fatalf("expected the captured territory under blue, got %+v", blue)
	}
}
