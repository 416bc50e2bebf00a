package game

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"warboard.gg/internal/ids"
)

// MemStore implements Store with process-local maps. Suitable for dev and
// tests; production deployments point at the Postgres adapter.
type MemStore struct {
	mu          sync.RWMutex
	users       map[string]*User
	ranks       map[string]*Rank
	tycoons     map[string]*Tycoon
	territories map[string]*Territory
	activity    []*ActivityLog
	commands    []*AdminCommand
	now         func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:       make(map[string]*User),
		ranks:       make(map[string]*Rank),
		tycoons:     make(map[string]*Tycoon),
		territories: make(map[string]*Territory),
		now:         time.Now,
	}
}

// SetClock overrides the time source (useful for tests).
func (m *MemStore) SetClock(fn func() time.Time) {
	if fn != nil {
		m.now = fn
	}
}

// Users ---------------------------------------------------------------------

func (m *MemStore) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *MemStore) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemStore) UpsertUser(ctx context.Context, in UpsertUser) (*User, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	u, ok := m.users[in.ID]
	if !ok {
		u = &User{
			ID:        in.ID,
			RankName:  "NonAdmin",
			CreatedAt: now,
		}
		m.users[in.ID] = u
	}
	u.Email = in.Email
	u.Username = in.Username
	u.ProfileImageURL = in.ProfileImageURL
	u.LastSeen = now
	u.UpdatedAt = now
	copied := *u
	return &copied, nil
}

func (m *MemStore) UpdateUserRank(ctx context.Context, userID string, rankScore float64, rankName string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.RankScore = rankScore
	u.RankName = rankName
	u.UpdatedAt = m.now().UTC()
	copied := *u
	return &copied, nil
}

func (m *MemStore) SetUserBanned(ctx context.Context, userID string, banned bool) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	u.IsBanned = banned
	u.UpdatedAt = m.now().UTC()
	copied := *u
	return &copied, nil
}

func (m *MemStore) OnlineUsers(ctx context.Context) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*User
	for _, u := range m.users {
		if u.IsBanned {
			continue
		}
		copied := *u
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Ranks ---------------------------------------------------------------------

func (m *MemStore) ListRanks(ctx context.Context) ([]*Rank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Rank
	for _, r := range m.ranks {
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RankScore > out[j].RankScore })
	return out, nil
}

func (m *MemStore) CreateRank(ctx context.Context, r *Rank) error {
	if r.RankName == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = ids.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = m.now().UTC()
	}
	copied := *r
	m.ranks[r.ID] = &copied
	return nil
}

func (m *MemStore) UpdateRankPermissions(ctx context.Context, rankID string, permissions []string) (*Rank, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.ranks[rankID]
	if !ok {
		return nil, ErrNotFound
	}
	r.Permissions = append([]string(nil), permissions...)
	copied := *r
	return &copied, nil
}

// Tycoons -------------------------------------------------------------------

func (m *MemStore) TycoonsByOwner(ctx context.Context, ownerID string) ([]*Tycoon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Tycoon
	for _, t := range m.tycoons {
		if t.OwnerID == ownerID {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ActiveTycoons(ctx context.Context) ([]*Tycoon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Tycoon
	for _, t := range m.tycoons {
		if t.IsActive {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateTycoon(ctx context.Context, t *Tycoon) error {
	if t.Name == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.Level == 0 {
		t.Level = 1
	}
	t.LastUpdated = now
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	copied := *t
	m.tycoons[t.ID] = &copied
	return nil
}

func (m *MemStore) UpdateTycoonResources(ctx context.Context, tycoonID string, res Resources) (*Tycoon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tycoons[tycoonID]
	if !ok {
		return nil, ErrNotFound
	}
	t.Resources = res
	t.LastUpdated = m.now().UTC()
	copied := *t
	return &copied, nil
}

// Territories ---------------------------------------------------------------

func (m *MemStore) ListTerritories(ctx context.Context) ([]*Territory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Territory
	for _, t := range m.territories {
		copied := *t
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) TerritoriesByTeam(ctx context.Context, team string) ([]*Territory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Territory
	for _, t := range m.territories {
		if t.Team == team {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) CreateTerritory(ctx context.Context, t *Territory) error {
	if t.Name == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = ids.New()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now().UTC()
	}
	copied := *t
	m.territories[t.ID] = &copied
	return nil
}

func (m *MemStore) CaptureTerritory(ctx context.Context, territoryID, userID, team string) (*Territory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.territories[territoryID]
	if !ok {
		return nil, ErrNotFound
	}
	t.ControlledBy = userID
	t.Team = team
	t.IsContested = false
	t.LastCaptured = m.now().UTC()
	copied := *t
	return &copied, nil
}

// Activity and commands -----------------------------------------------------

func (m *MemStore) AppendActivity(ctx context.Context, entry *ActivityLog) error {
	if entry.Action == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now().UTC()
	}
	copied := *entry
	m.activity = append([]*ActivityLog{&copied}, m.activity...)
	return nil
}

func (m *MemStore) RecentActivity(ctx context.Context, limit int) ([]*ActivityLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.activity) {
		limit = len(m.activity)
	}
	out := make([]*ActivityLog, 0, limit)
	for _, e := range m.activity[:limit] {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MemStore) AppendCommand(ctx context.Context, cmd *AdminCommand) error {
	if cmd.Command == "" {
		return ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cmd.ID == "" {
		cmd.ID = ids.New()
	}
	if cmd.Timestamp.IsZero() {
		cmd.Timestamp = m.now().UTC()
	}
	copied := *cmd
	m.commands = append([]*AdminCommand{&copied}, m.commands...)
	return nil
}

func (m *MemStore) CommandHistory(ctx context.Context, limit int) ([]*AdminCommand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.commands) {
		limit = len(m.commands)
	}
	out := make([]*AdminCommand, 0, limit)
	for _, c := range m.commands[:limit] {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

// Stats ---------------------------------------------------------------------

func (m *MemStore) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s Stats
	for _, u := range m.users {
		if !u.IsBanned {
			s.OnlinePlayers++
		}
	}
	for _, t := range m.tycoons {
		if t.IsActive {
			s.ActiveTycoons++
		}
		s.TotalRevenue += t.Resources.Crystals * 10
	}
	return s, nil
}

var _ Store = (*MemStore)(nil)
