package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/auth"
	"github.com/sakif/tweetsync/internal/model"
)

// Moderator is the moderation capability. *service.ModerationService
// satisfies it.
type Moderator interface {
	Get(ctx context.Context, id int64) (*model.Tweet, error)
	List(ctx context.Context, q model.TweetQuery) (*model.TweetPage, error)
	SetApproval(ctx context.Context, id int64, approved bool) (*model.Tweet, error)
}

type TweetHandler struct {
	moderation Moderator
	logger     *slog.Logger
}

func NewTweetHandler(moderation Moderator, logger *slog.Logger) *TweetHandler {
	return &TweetHandler{moderation: moderation, logger: logger}
}

// HandleList returns one page of tweets, newest first.
//
// HTTP: GET /api/tweets?approved=1&page=2&pageSize=50
//
// Anonymous callers only ever see approved tweets. An admin sees everything
// unless approved=1 is passed.
func (h *TweetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := model.TweetQuery{}

	var err error
	if query.Page, err = intParam(q.Get("page"), "page"); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if query.PageSize, err = intParam(q.Get("pageSize"), "pageSize"); err != nil {
		writeError(w, h.logger, err)
		return
	}

	approved, err := boolParam(q.Get("approved"), "approved")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	_, isAdmin := auth.AdminFromContext(r.Context())
	query.ApprovedOnly = approved || !isAdmin

	page, err := h.moderation.List(r.Context(), query)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// HandleGet returns one tweet by internal id.
//
// HTTP: GET /api/tweets/{id}
func (h *TweetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := tweetID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	tweet, err := h.moderation.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tweet)
}

type approvalRequest struct {
	Approved *bool `json:"approved"`
}

// HandleSetApproval approves or unapproves a tweet.
//
// HTTP: PUT /api/tweets/{id}/approval  {"approved": true}
func (h *TweetHandler) HandleSetApproval(w http.ResponseWriter, r *http.Request) {
	id, err := tweetID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req approvalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Approved == nil {
		writeError(w, h.logger, apperror.ValidationFailed("approved", "approved is required"))
		return
	}

	tweet, err := h.moderation.SetApproval(r.Context(), id, *req.Approved)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tweet)
}

func tweetID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "id must be a positive integer")
	}
	return id, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}

func boolParam(raw, name string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperror.ValidationFailed(name, name+" must be a boolean")
	}
	return b, nil
}
