package pg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"warboard.gg/internal/auth"
	"warboard.gg/internal/game"
)

var userCols = []string{
	"id", "email", "username", "profile_image_url",
	"rank_score", "rank_name", "is_banned", "last_seen", "created_at", "updated_at",
}

func userRow(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("discord-1", "x@example.com", "yaniselpror", "", 5.0, "41 | Supreme Creator", false, now, now, now)
}

func TestGetUserNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select .* from users where id=").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	s := NewStore(db)
	if _, err := s.GetUser(context.Background(), "missing"); !errors.Is(err, game.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("insert into users.*on conflict").
		WithArgs("discord-1", "x@example.com", "yaniselpror", "").
		WillReturnRows(userRow(now))

	s := NewStore(db)
	u, err := s.UpsertUser(context.Background(), game.UpsertUser{
		ID:       "discord-1",
		Email:    "x@example.com",
		Username: "yaniselpror",
	})
	if err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	if u.Username != "yaniselpror" || u.RankScore != 5 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertUserRequiresID(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := NewStore(db)
	if _, err := s.UpsertUser(context.Background(), game.UpsertUser{Username: "x"}); !errors.Is(err, game.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpdateUserRank(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery("update users set rank_score").
		WithArgs("discord-1", 5.0, "41 | Supreme Creator").
		WillReturnRows(userRow(now))

	s := NewStore(db)
	u, err := s.UpdateUserRank(context.Background(), "discord-1", 5, "41 | Supreme Creator")
	if err != nil {
		t.Fatalf("UpdateUserRank: %v", err)
	}
	if u.RankName != "41 | Supreme Creator" {
		t.Fatalf("unexpected rank name: %s", u.RankName)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListRanksDecodesPermissions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "rank_score", "rank_name", "permissions", "created_at"}).
		AddRow("r1", 5.0, "41 | Supreme Creator", []byte(`["all"]`), now).
		AddRow("r2", 4.0, "Head Administration", []byte(`["admin_commands"]`), now)
	mock.ExpectQuery("select id, rank_score, rank_name, permissions, created_at from ranks").
		WillReturnRows(rows)

	s := NewStore(db)
	ranks, err := s.ListRanks(context.Background())
	if err != nil {
		t.Fatalf("ListRanks: %v", err)
	}
	if len(ranks) != 2 {
		t.Fatalf("expected 2 ranks, got %d", len(ranks))
	}
	if len(ranks[0].Permissions) != 1 || ranks[0].Permissions[0] != "all" {
		t.Fatalf("permissions not decoded: %v", ranks[0].Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select count\\(\\*\\) from users").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery("from tycoons").
		WillReturnRows(sqlmock.NewRows([]string{"active", "revenue"}).AddRow(3, 45000))

	s := NewStore(db)
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.OnlinePlayers != 12 || stats.ActiveTycoons != 3 || stats.TotalRevenue != 45000 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC().Truncate(time.Second)
	sess := &auth.Session{
		ID:        "01JSESSION",
		Principal: auth.Principal{ID: "discord-1", Username: "yaniselpror", RankScore: 5},
		CreatedAt: now,
	}
	raw, _ := json.Marshal(sess.Principal)

	mock.ExpectExec("insert into sessions").
		WithArgs(sess.ID, raw, sess.CreatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select id, principal, created_at, expires_at from sessions").
		WithArgs(sess.ID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "principal", "created_at", "expires_at"}).
			AddRow(sess.ID, raw, now, nil))

	store := NewSessionStore(db)
	if err := store.Put(context.Background(), sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Principal.Username != "yaniselpror" || got.Principal.RankScore != 5 {
		t.Fatalf("principal not preserved: %+v", got.Principal)
	}
	if !got.ExpiresAt.IsZero() {
		t.Fatalf("expected non-expiring session, got expiry %v", got.ExpiresAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSessionGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select id, principal, created_at, expires_at from sessions").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "principal", "created_at", "expires_at"}))

	store := NewSessionStore(db)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
