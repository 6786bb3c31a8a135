package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/matchpoint/internal/models"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

type ReputationHandler struct {
	reputation  services.ReputationServiceInterface
	userService services.UserServiceInterface
}

func NewReputationHandler(reputation services.ReputationServiceInterface, userService services.UserServiceInterface) *ReputationHandler {
	return &ReputationHandler{
		reputation:  reputation,
		userService: userService,
	}
}

type StatResponse struct {
	Stat  *models.Stat     `json:"stat"`
	State models.StatState `json:"state"`
}

type ScoreResponse struct {
	Username string `json:"username"`
	Score    int64  `json:"score"`
}

type LeaderboardResponse struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}

func (h *ReputationHandler) GetStat(w http.ResponseWriter, r *http.Request) {
	statID, ok := parsePathID(w, r, "Invalid stat ID")
	if !ok {
		return
	}

	stat, err := h.reputation.GetStat(r.Context(), statID)
	if err != nil {
		writeServiceError(w, err, "getting stat")
		return
	}

	writeJSON(w, http.StatusOK, StatResponse{Stat: stat, State: stat.State()})
}

// ExpireStat retires a stat the caller reported. Scores keep the stat's
// contribution.
func (h *ReputationHandler) ExpireStat(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	statID, ok := parsePathID(w, r, "Invalid stat ID")
	if !ok {
		return
	}

	if err := h.reputation.ExpireStat(r.Context(), user.ID, statID); err != nil {
		writeServiceError(w, err, "expiring stat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Stat expired"})
}

func (h *ReputationHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeServiceError(w, err, "resolving username")
		return
	}

	score, err := h.reputation.GetScore(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "getting score")
		return
	}

	writeJSON(w, http.StatusOK, ScoreResponse{Username: user.Username, Score: score.Score})
}

func (h *ReputationHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reputation.Leaderboard(r.Context(), queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err, "loading leaderboard")
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: entries})
}
