package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/tweetsync/internal/apperror"
	"github.com/sakif/tweetsync/internal/service"
)

const handshakeCookie = "tweetsync_oauth"

// Handshaker runs the OAuth 1.0a token exchange. *service.HandshakeService
// satisfies it.
type Handshaker interface {
	RequestToken(ctx context.Context, callbackURL string) (*service.RequestTokenResult, error)
	AccessToken(ctx context.Context, token, tokenSecret, verifier string) (map[string]string, error)
}

// OAuthHandler connects tweetsync to a Twitter account.
//
//	GET /oauth/connect   → request token, cookie, redirect to twitter.com
//	GET /oauth/callback  → check state, exchange verifier, store access token
//
// The temporary token and its secret travel in a short-lived HttpOnly cookie
// together with a random state value. The state is also put on the callback
// URL, so a callback the admin did not start is rejected.
type OAuthHandler struct {
	handshake Handshaker
	baseURL   string
	secure    bool
	logger    *slog.Logger
}

func NewOAuthHandler(handshake Handshaker, baseURL string, secureCookie bool, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		handshake: handshake,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secure:    secureCookie,
		logger:    logger,
	}
}

// HandleConnect starts the handshake.
func (h *OAuthHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	callback := h.baseURL + "/oauth/callback?state=" + url.QueryEscape(state)

	res, err := h.handshake.RequestToken(r.Context(), callback)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	v := url.Values{}
	v.Set("state", state)
	v.Set("token", res.Token)
	v.Set("secret", res.TokenSecret)
	http.SetCookie(w, &http.Cookie{
		Name:     handshakeCookie,
		Value:    v.Encode(),
		Path:     "/oauth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	if !res.CallbackConfirmed {
		h.logger.Warn("twitter did not confirm the callback url", slog.String("callback", callback))
	}
	http.Redirect(w, r, res.AuthorizeURL, http.StatusFound)
}

type connectedResponse struct {
	Connected  bool   `json:"connected"`
	ScreenName string `json:"screenName,omitempty"`
	UserID     string `json:"userId,omitempty"`
}

// HandleCallback finishes the handshake.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Single use, whatever happens next.
	http.SetCookie(w, &http.Cookie{Name: handshakeCookie, Value: "", Path: "/oauth", MaxAge: -1})

	if denied := q.Get("denied"); denied != "" {
		writeError(w, h.logger, apperror.ValidationFailed("denied", "authorization was denied on twitter"))
		return
	}

	cookie, err := r.Cookie(handshakeCookie)
	if err != nil {
		writeError(w, h.logger, apperror.ValidationFailed("state", "no handshake in progress"))
		return
	}
	stored, err := url.ParseQuery(cookie.Value)
	if err != nil || stored.Get("state") == "" || stored.Get("state") != q.Get("state") {
		h.logger.Warn("oauth callback: state mismatch")
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	if token := q.Get("oauth_token"); token != stored.Get("token") {
		writeError(w, h.logger, apperror.ValidationFailed("oauth_token", "oauth_token does not match the pending request"))
		return
	}

	params, err := h.handshake.AccessToken(r.Context(), stored.Get("token"), stored.Get("secret"), q.Get("oauth_verifier"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, connectedResponse{
		Connected:  true,
		ScreenName: params["screen_name"],
		UserID:     params["user_id"],
	})
}
