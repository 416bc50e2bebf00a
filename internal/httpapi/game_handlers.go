package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"warboard.gg/internal/audit"
	"warboard.gg/internal/auth"
	"warboard.gg/internal/game"
)

type updateRankRequest struct {
	RankScore float64 `json:"rankScore"`
	RankName  string  `json:"rankName"`
}

type createRankRequest struct {
	RankScore   float64  `json:"rankScore"`
	RankName    string   `json:"rankName"`
	Permissions []string `json:"permissions"`
}

type adminCommandRequest struct {
	Command    string `json:"command"`
	TargetUser string `json:"targetUser"`
}

type createTycoonRequest struct {
	Name      string         `json:"name"`
	Level     int            `json:"level"`
	Resources game.Resources `json:"resources"`
	IsActive  bool           `json:"isActive"`
}

type captureRequest struct {
	Team string `json:"team"`
}

func handleGameError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, game.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// requireScore loads the session principal and applies the rank gate.
func requireScore(w http.ResponseWriter, r *http.Request, minScore float64) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok || !auth.Allow(&p, minScore) {
		writeError(w, r, http.StatusForbidden, "Insufficient permissions")
		return auth.Principal{}, false
	}
	return p, true
}

func (a *API) handleGameStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	stats, err := a.opts.Store.Stats(r.Context())
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleRanks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ranks, err := a.opts.Store.ListRanks(r.Context())
		if err != nil {
			handleGameError(w, r, err)
			return
		}
		if ranks == nil {
			ranks = []*game.Rank{}
		}
		writeJSON(w, http.StatusOK, ranks)
	case http.MethodPost:
		a.createRank(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createRank(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScore(w, r, auth.ScoreRankMutation); !ok {
		return
	}
	var req createRankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rank := &game.Rank{
		RankScore:   req.RankScore,
		RankName:    req.RankName,
		Permissions: req.Permissions,
	}
	if err := a.opts.Store.CreateRank(r.Context(), rank); err != nil {
		handleGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rank)
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	users, err := a.opts.Store.OnlineUsers(r.Context())
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	if users == nil {
		users = []*game.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
	userID, op, ok := strings.Cut(path, "/")
	if !ok || userID == "" || op != "rank" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.updateUserRank(w, r, userID)
}

func (a *API) updateUserRank(w http.ResponseWriter, r *http.Request, userID string) {
	executor, ok := requireScore(w, r, auth.ScoreRankMutation)
	if !ok {
		return
	}

	var req updateRankRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RankName) == "" {
		writeError(w, r, http.StatusBadRequest, "rankName is required")
		return
	}

	updated, err := a.opts.Store.UpdateUserRank(r.Context(), userID, req.RankScore, req.RankName)
	if err != nil {
		handleGameError(w, r, err)
		return
	}

	name := updated.Username
	if name == "" {
		name = updated.ID
	}
	_ = a.opts.Store.AppendActivity(r.Context(), &game.ActivityLog{
		UserID:  executor.ID,
		Action:  "rank_change",
		Details: "Updated " + name + " rank to " + req.RankName,
	})
	_ = audit.LogEvent(r.Context(), "rank.change", map[string]any{
		"target":    updated.ID,
		"rankScore": req.RankScore,
		"rankName":  req.RankName,
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) handleTerritories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	var (
		territories []*game.Territory
		err         error
	)
	if team := r.URL.Query().Get("team"); team != "" {
		territories, err = a.opts.Store.TerritoriesByTeam(r.Context(), team)
	} else {
		territories, err = a.opts.Store.ListTerritories(r.Context())
	}
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	if territories == nil {
		territories = []*game.Territory{}
	}
	writeJSON(w, http.StatusOK, territories)
}

func (a *API) handleTerritoryResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/territories/")
	territoryID, op, ok := strings.Cut(path, "/")
	if !ok || territoryID == "" || op != "capture" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req captureRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Team) == "" {
		writeError(w, r, http.StatusBadRequest, "team is required")
		return
	}

	territory, err := a.opts.Store.CaptureTerritory(r.Context(), territoryID, p.ID, req.Team)
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	_ = a.opts.Store.AppendActivity(r.Context(), &game.ActivityLog{
		UserID:  p.ID,
		Action:  "territory_capture",
		Details: "Captured " + territory.Name + " for " + req.Team,
	})
	writeJSON(w, http.StatusOK, territory)
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), 50, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.opts.Store.RecentActivity(r.Context(), limit)
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*game.ActivityLog{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleAdminCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	executor, ok := requireScore(w, r, auth.ScoreAdminCommand)
	if !ok {
		return
	}

	var req adminCommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, r, http.StatusBadRequest, "command is required")
		return
	}

	result := "Unknown command"
	targetID := req.TargetUser

	switch {
	case strings.HasPrefix(req.Command, ":tp"):
		result = "Teleported " + req.TargetUser + " to spawn"
	case strings.HasPrefix(req.Command, ":ban"):
		if req.TargetUser != "" {
			target, err := a.opts.Store.GetUserByUsername(r.Context(), req.TargetUser)
			if err == nil {
				if _, err := a.opts.Store.SetUserBanned(r.Context(), target.ID, true); err != nil {
					handleGameError(w, r, err)
					return
				}
				result = "Banned user " + req.TargetUser
				targetID = target.ID
			} else if errors.Is(err, game.ErrNotFound) {
				result = "User " + req.TargetUser + " not found"
			} else {
				handleGameError(w, r, err)
				return
			}
		}
	case strings.HasPrefix(req.Command, ":rank"):
		result = "Rank command processed for " + req.TargetUser
	case strings.HasPrefix(req.Command, ":give"):
		result = "Gave item to " + req.TargetUser
	}

	cmd := &game.AdminCommand{
		ExecutedBy: executor.ID,
		Command:    req.Command,
		TargetUser: targetID,
		Result:     result,
	}
	if err := a.opts.Store.AppendCommand(r.Context(), cmd); err != nil {
		handleGameError(w, r, err)
		return
	}
	_ = a.opts.Store.AppendActivity(r.Context(), &game.ActivityLog{
		UserID:  executor.ID,
		Action:  "admin_command",
		Details: "Executed: " + req.Command,
	})
	_ = audit.LogEvent(r.Context(), "admin.command", map[string]any{
		"command": req.Command,
		"target":  targetID,
		"result":  result,
	})
	writeJSON(w, http.StatusOK, cmd)
}

func (a *API) handleAdminCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), 100, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	commands, err := a.opts.Store.CommandHistory(r.Context(), limit)
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	if commands == nil {
		commands = []*game.AdminCommand{}
	}
	writeJSON(w, http.StatusOK, commands)
}

func (a *API) handleTycoons(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		tycoons, err := a.opts.Store.TycoonsByOwner(r.Context(), p.ID)
		if err != nil {
			handleGameError(w, r, err)
			return
		}
		if tycoons == nil {
			tycoons = []*game.Tycoon{}
		}
		writeJSON(w, http.StatusOK, tycoons)
	case http.MethodPost:
		a.createTycoon(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createTycoon(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createTycoonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tycoon := &game.Tycoon{
		OwnerID:   p.ID,
		Name:      req.Name,
		Level:     req.Level,
		Resources: req.Resources,
		IsActive:  req.IsActive,
	}
	if err := a.opts.Store.CreateTycoon(r.Context(), tycoon); err != nil {
		handleGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tycoon)
}

func (a *API) handleTycoonResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tycoons/")
	tycoonID, op, ok := strings.Cut(path, "/")
	if !ok || tycoonID == "" || op != "resources" {
		writeError(w, r, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var res game.Resources
	if err := decodeJSON(w, r, &res); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	tycoon, err := a.opts.Store.UpdateTycoonResources(r.Context(), tycoonID, res)
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tycoon)
}

func (a *API) handleActiveTycoons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tycoons, err := a.opts.Store.ActiveTycoons(r.Context())
	if err != nil {
		handleGameError(w, r, err)
		return
	}
	if tycoons == nil {
		tycoons = []*game.Tycoon{}
	}
	writeJSON(w, http.StatusOK, tycoons)
}
