package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warboard.gg/internal/auth"
)

// SessionStore implements auth.SessionStore on the sessions table. The
// principal is stored as one jsonb blob; a null expires_at marks a
// non-expiring session.
type SessionStore struct {
	db *sql.DB
}

var _ auth.SessionStore = (*SessionStore)(nil)

func NewSessionStore(db *sql.DB) *SessionStore { return &SessionStore{db: db} }

func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, principal, created_at, expires_at from sessions where id=$1`, id)

	var (
		sess    auth.Session
		raw     []byte
		expires sql.NullTime
	)
	if err := row.Scan(&sess.ID, &raw, &sess.CreatedAt, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &sess.Principal); err != nil {
		return nil, fmt.Errorf("decode session principal: %w", err)
	}
	if expires.Valid {
		sess.ExpiresAt = expires.Time
	}
	return &sess, nil
}

func (s *SessionStore) Put(ctx context.Context, sess *auth.Session) error {
	raw, err := json.Marshal(sess.Principal)
	if err != nil {
		return fmt.Errorf("encode session principal: %w", err)
	}
	var expires sql.NullTime
	if !sess.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: sess.ExpiresAt, Valid: true}
	}
	_, err = s.db.ExecContext(ctx,
		`insert into sessions(id, principal, created_at, expires_at)
		 values($1,$2,$3,$4)
		 on conflict (id) do update set principal=excluded.principal, expires_at=excluded.expires_at`,
		sess.ID, raw, sess.CreatedAt, expires)
	return err
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where id=$1`, id)
	return err
}

// PurgeExpired drops sessions whose expiry has passed. Suitable for a
// periodic maintenance goroutine.
func (s *SessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from sessions where expires_at is not null and expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
