package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"quizhub-service/internal/app"
	"quizhub-service/internal/domain"
)

// Handler serves the REST surface over the attempt, leaderboard and activity services.
type Handler struct {
	attempts *app.AttemptService
	boards   *app.LeaderboardService
	activity *app.ActivityService
}

func NewHandler(attempts *app.AttemptService, boards *app.LeaderboardService, activity *app.ActivityService) *Handler {
	return &Handler{attempts: attempts, boards: boards, activity: activity}
}

type startRequest struct {
	QuizID int64  `json:"quizId"`
	Owner  string `json:"owner"`
}

func (h *Handler) StartAttempt(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	owner, err := domain.ParseOwner(req.Owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	attempt, err := h.attempts.Start(r.Context(), req.QuizID, owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	var sub app.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	attempt, err := h.attempts.Submit(r.Context(), id, sub)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

// GetAttempt returns the attempt and its graded answers.
func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	detail, err := h.attempts.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *Handler) AbandonAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	attempt, err := h.attempts.Abandon(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (h *Handler) RecentAttempts(w http.ResponseWriter, r *http.Request) {
	owner, err := domain.ParseOwner(r.URL.Query().Get("owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	attempts, err := h.boards.RecentAttempts(r.Context(), owner, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	scope, err := domain.NewScope(domain.LeaderboardType(chi.URLParam(r, "type")), r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	standings, err := h.boards.TopN(r.Context(), scope, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (h *Handler) QuizRankings(w http.ResponseWriter, r *http.Request) {
	quizID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	rankings, err := h.boards.QuizRankings(r.Context(), quizID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rankings)
}

func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	stats, err := h.boards.UserStats(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type loginResponse struct {
	UserID     int64 `json:"userId"`
	StreakDays int   `json:"streakDays"`
	Points     int   `json:"points"`
}

func (h *Handler) RecordLogin(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := h.activity.RecordLogin(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{UserID: user.ID, StreakDays: user.StreakDays, Points: user.Points})
}

func attemptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid attempt id")
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, "invalid "+name)
		return 0, false
	}
	return id, true
}
