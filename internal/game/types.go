package game

import "time"

// User is the durable record for a dashboard identity. Only display fields
// come from the OAuth provider; rank fields are managed here.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email,omitempty"`
	Username        string    `json:"username"`
	ProfileImageURL string    `json:"profileImageUrl,omitempty"`
	RankScore       float64   `json:"rankScore"`
	RankName        string    `json:"rankName"`
	IsBanned        bool      `json:"isBanned"`
	LastSeen        time.Time `json:"lastSeen"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// UpsertUser carries the identity fields written on every successful login.
// Same external ID always maps to the same row; fields are overwritten.
type UpsertUser struct {
	ID              string
	Email           string
	Username        string
	ProfileImageURL string
}

// Rank is one step of the admin hierarchy. Permissions is an opaque tag
// list the authorization gate does not interpret.
type Rank struct {
	ID          string    `json:"id"`
	RankScore   float64   `json:"rankScore"`
	RankName    string    `json:"rankName"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Resources is the tycoon resource bundle, passed through untouched.
type Resources struct {
	Crystals int64 `json:"crystals"`
	Oil      int64 `json:"oil"`
	Steel    int64 `json:"steel"`
	Energy   int64 `json:"energy"`
}

// Tycoon is a player-owned base.
type Tycoon struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Name        string    `json:"name"`
	Level       int       `json:"level"`
	Resources   Resources `json:"resources"`
	IsActive    bool      `json:"isActive"`
	LastUpdated time.Time `json:"lastUpdated"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Position locates a territory on the war map.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Territory is one capturable region of the war map.
type Territory struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ControlledBy string    `json:"controlledBy,omitempty"`
	Team         string    `json:"team,omitempty"`
	Position     Position  `json:"position"`
	IsContested  bool      `json:"isContested"`
	LastCaptured time.Time `json:"lastCaptured,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ActivityLog is an append-only record of admin actions.
type ActivityLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AdminCommand records one executed console command.
type AdminCommand struct {
	ID         string    `json:"id"`
	ExecutedBy string    `json:"executedBy,omitempty"`
	Command    string    `json:"command"`
	TargetUser string    `json:"targetUser,omitempty"`
	Result     string    `json:"result"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stats is the aggregate snapshot pushed over the broadcast channel. It has
// no identity and no persistence.
type Stats struct {
	OnlinePlayers int   `json:"onlinePlayers"`
	ActiveTycoons int   `json:"activeTycoons"`
	TotalRevenue  int64 `json:"totalRevenue"`
}
