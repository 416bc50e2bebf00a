package game

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("game: not found")
	ErrInvalidInput = errors.New("game: invalid input")
)

// Store describes persistence for the dashboard domain. Implemented by
// MemStore and by the Postgres adapter in internal/store/pg. The auth broker
// and HTTP handlers depend on this interface only.
type Store interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpsertUser(ctx context.Context, u UpsertUser) (*User, error)
	UpdateUserRank(ctx context.Context, userID string, rankScore float64, rankName string) (*User, error)
	SetUserBanned(ctx context.Context, userID string, banned bool) (*User, error)
	OnlineUsers(ctx context.Context) ([]*User, error)

	ListRanks(ctx context.Context) ([]*Rank, error)
	CreateRank(ctx context.Context, r *Rank) error
	UpdateRankPermissions(ctx context.Context, rankID string, permissions []string) (*Rank, error)

	TycoonsByOwner(ctx context.Context, ownerID string) ([]*Tycoon, error)
	ActiveTycoons(ctx context.Context) ([]*Tycoon, error)
	CreateTycoon(ctx context.Context, t *Tycoon) error
	UpdateTycoonResources(ctx context.Context, tycoonID string, res Resources) (*Tycoon, error)

	ListTerritories(ctx context.Context) ([]*Territory, error)
	TerritoriesByTeam(ctx context.Context, team string) ([]*Territory, error)
	CaptureTerritory(ctx context.Context, territoryID, userID, team string) (*Territory, error)

	AppendActivity(ctx context.Context, entry *ActivityLog) error
	RecentActivity(ctx context.Context, limit int) ([]*ActivityLog, error)

	AppendCommand(ctx context.Context, cmd *AdminCommand) error
	CommandHistory(ctx context.Context, limit int) ([]*AdminCommand, error)

	Stats(ctx context.Context) (Stats, error)
}
