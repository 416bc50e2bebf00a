package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"warboard.gg/internal/game"
	"warboard.gg/internal/ids"
)

// Store implements game.Store on PostgreSQL. Expected tables are documented
// in schema.sql next to this file.
type Store struct {
	db *sql.DB
}

var _ game.Store = (*Store)(nil)

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

type rowScanner interface {
	Scan(dest ...any) error
}

// Users ---------------------------------------------------------------------

const userColumns = `id, coalesce(email,''), coalesce(username,''), coalesce(profile_image_url,''),
	rank_score, rank_name, is_banned, last_seen, created_at, updated_at`

func scanUser(row rowScanner) (*game.User, error) {
	var u game.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.ProfileImageURL,
		&u.RankScore, &u.RankName, &u.IsBanned, &u.LastSeen, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*game.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*game.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(username)=lower($1)`, username))
}

func (s *Store) UpsertUser(ctx context.Context, in game.UpsertUser) (*game.User, error) {
	if in.ID == "" {
		return nil, game.ErrInvalidInput
	}
	return scanUser(s.db.QueryRowContext(ctx,
		`insert into users(id, email, username, profile_image_url, rank_score, rank_name, is_banned, last_seen, created_at, updated_at)
		 values($1,$2,$3,$4,0,'NonAdmin',false,now(),now(),now())
		 on conflict (id) do update set
			email=excluded.email,
			username=excluded.username,
			profile_image_url=excluded.profile_image_url,
			last_seen=now(),
			updated_at=now()
		 returning `+userColumns,
		in.ID, in.Email, in.Username, in.ProfileImageURL))
}

func (s *Store) UpdateUserRank(ctx context.Context, userID string, rankScore float64, rankName string) (*game.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`update users set rank_score=$2, rank_name=$3, updated_at=now() where id=$1
		 returning `+userColumns,
		userID, rankScore, rankName))
}

func (s *Store) SetUserBanned(ctx context.Context, userID string, banned bool) (*game.User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`update users set is_banned=$2, updated_at=now() where id=$1
		 returning `+userColumns,
		userID, banned))
}

func (s *Store) OnlineUsers(ctx context.Context) ([]*game.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users where not is_banned order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Ranks ---------------------------------------------------------------------

func (s *Store) ListRanks(ctx context.Context) ([]*game.Rank, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, rank_score, rank_name, permissions, created_at from ranks order by rank_score desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Rank
	for rows.Next() {
		var (
			r     game.Rank
			perms []byte
		)
		if err := rows.Scan(&r.ID, &r.RankScore, &r.RankName, &perms, &r.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(perms, &r.Permissions)
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *Store) CreateRank(ctx context.Context, r *game.Rank) error {
	if r.RankName == "" {
		return game.ErrInvalidInput
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	perms, _ := json.Marshal(r.Permissions)
	_, err := s.db.ExecContext(ctx,
		`insert into ranks(id, rank_score, rank_name, permissions, created_at) values($1,$2,$3,$4,now())`,
		r.ID, r.RankScore, r.RankName, perms)
	return err
}

func (s *Store) UpdateRankPermissions(ctx context.Context, rankID string, permissions []string) (*game.Rank, error) {
	perms, _ := json.Marshal(permissions)
	row := s.db.QueryRowContext(ctx,
		`update ranks set permissions=$2 where id=$1
		 returning id, rank_score, rank_name, permissions, created_at`,
		rankID, perms)
	var (
		r   game.Rank
		raw []byte
	)
	if err := row.Scan(&r.ID, &r.RankScore, &r.RankName, &raw, &r.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(raw, &r.Permissions)
	return &r, nil
}

// Tycoons -------------------------------------------------------------------

const tycoonColumns = `id, coalesce(owner_id,''), name, level, resources, is_active, last_updated, created_at`

func scanTycoon(row rowScanner) (*game.Tycoon, error) {
	var (
		t   game.Tycoon
		res []byte
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Level, &res, &t.IsActive, &t.LastUpdated, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(res, &t.Resources)
	return &t, nil
}

func (s *Store) queryTycoons(ctx context.Context, query string, args ...any) ([]*game.Tycoon, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Tycoon
	for rows.Next() {
		t, err := scanTycoon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) TycoonsByOwner(ctx context.Context, ownerID string) ([]*game.Tycoon, error) {
	return s.queryTycoons(ctx,
		`select `+tycoonColumns+` from tycoons where owner_id=$1 order by id`, ownerID)
}

func (s *Store) ActiveTycoons(ctx context.Context) ([]*game.Tycoon, error) {
	return s.queryTycoons(ctx,
		`select `+tycoonColumns+` from tycoons where is_active order by id`)
}

func (s *Store) CreateTycoon(ctx context.Context, t *game.Tycoon) error {
	if t.Name == "" {
		return game.ErrInvalidInput
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Level == 0 {
		t.Level = 1
	}
	res, _ := json.Marshal(t.Resources)
	_, err := s.db.ExecContext(ctx,
		`insert into tycoons(id, owner_id, name, level, resources, is_active, last_updated, created_at)
		 values($1, nullif($2,''), $3, $4, $5, $6, now(), now())`,
		t.ID, t.OwnerID, t.Name, t.Level, res, t.IsActive)
	return err
}

func (s *Store) UpdateTycoonResources(ctx context.Context, tycoonID string, res game.Resources) (*game.Tycoon, error) {
	raw, _ := json.Marshal(res)
	return scanTycoon(s.db.QueryRowContext(ctx,
		`update tycoons set resources=$2, last_updated=now() where id=$1
		 returning `+tycoonColumns,
		tycoonID, raw))
}

// Territories ---------------------------------------------------------------

const territoryColumns = `id, name, coalesce(controlled_by,''), coalesce(team,''), position, is_contested, last_captured, created_at`

func scanTerritory(row rowScanner) (*game.Territory, error) {
	var (
		t        game.Territory
		pos      []byte
		captured sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.ControlledBy, &t.Team, &pos, &t.IsContested, &captured, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, game.ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(pos, &t.Position)
	if captured.Valid {
		t.LastCaptured = captured.Time
	}
	return &t, nil
}

func (s *Store) queryTerritories(ctx context.Context, query string, args ...any) ([]*game.Territory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.Territory
	for rows.Next() {
		t, err := scanTerritory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListTerritories(ctx context.Context) ([]*game.Territory, error) {
	return s.queryTerritories(ctx,
		`select `+territoryColumns+` from territories order by id`)
}

func (s *Store) TerritoriesByTeam(ctx context.Context, team string) ([]*game.Territory, error) {
	return s.queryTerritories(ctx,
		`select `+territoryColumns+` from territories where team=$1 order by id`, team)
}

func (s *Store) CreateTerritory(ctx context.Context, t *game.Territory) error {
	if t.Name == "" {
		return game.ErrInvalidInput
	}
	if t.ID == "" {
		t.ID = ids.New()
	}
	pos, _ := json.Marshal(t.Position)
	_, err := s.db.ExecContext(ctx,
		`insert into territories(id, name, controlled_by, team, position, is_contested, created_at)
		 values($1, $2, nullif($3,''), nullif($4,''), $5, $6, now())`,
		t.ID, t.Name, t.ControlledBy, t.Team, pos, t.IsContested)
	return err
}

func (s *Store) CaptureTerritory(ctx context.Context, territoryID, userID, team string) (*game.Territory, error) {
	return scanTerritory(s.db.QueryRowContext(ctx,
		`update territories set controlled_by=$2, team=$3, is_contested=false, last_captured=now() where id=$1
		 returning `+territoryColumns,
		territoryID, userID, team))
}

// Activity and commands -----------------------------------------------------

func (s *Store) AppendActivity(ctx context.Context, entry *game.ActivityLog) error {
	if entry.Action == "" {
		return game.ErrInvalidInput
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into activity_logs(id, user_id, action, details, occurred_at)
		 values($1, nullif($2,''), $3, nullif($4,''), $5)`,
		entry.ID, entry.UserID, entry.Action, entry.Details, entry.Timestamp)
	return err
}

func (s *Store) RecentActivity(ctx context.Context, limit int) ([]*game.ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, coalesce(user_id,''), action, coalesce(details,''), occurred_at
		 from activity_logs order by occurred_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.ActivityLog
	for rows.Next() {
		var e game.ActivityLog
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Details, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) AppendCommand(ctx context.Context, cmd *game.AdminCommand) error {
	if cmd.Command == "" {
		return game.ErrInvalidInput
	}
	if cmd.ID == "" {
		cmd.ID = ids.New()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into admin_commands(id, executed_by, command, target_user, result, executed_at)
		 values($1, nullif($2,''), $3, nullif($4,''), $5, $6)`,
		cmd.ID, cmd.ExecutedBy, cmd.Command, cmd.TargetUser, cmd.Result, cmd.Timestamp)
	return err
}

func (s *Store) CommandHistory(ctx context.Context, limit int) ([]*game.AdminCommand, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, coalesce(executed_by,''), command, coalesce(target_user,''), result, executed_at
		 from admin_commands order by executed_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*game.AdminCommand
	for rows.Next() {
		var c game.AdminCommand
		if err := rows.Scan(&c.ID, &c.ExecutedBy, &c.Command, &c.TargetUser, &c.Result, &c.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Stats ---------------------------------------------------------------------

func (s *Store) Stats(ctx context.Context) (game.Stats, error) {
	var stats game.Stats
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from users where not is_banned`).Scan(&stats.OnlinePlayers); err != nil {
		return game.Stats{}, err
	}
	if err := s.db.QueryRowContext(ctx,
		`select count(*) filter (where is_active),
		        coalesce(sum((resources->>'crystals')::bigint),0) * 10
		 from tycoons`).Scan(&stats.ActiveTycoons, &stats.TotalRevenue); err != nil {
		return game.Stats{}, err
	}
	return stats, nil
}
