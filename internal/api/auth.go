package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/jonsson/defcon/internal/jwtkeys"
	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/storage"
)

type contextKey string

const (
	ctxKeyUser         contextKey = "user"
	ctxKeyRunnerClaims contextKey = "runner_claims"
)

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Token handles POST /api/-/token.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}

	user, err := h.db.GetUserByEmail(req.Email)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if user == nil || !storage.CheckUserPassword(user, req.Password) {
		writeAPIError(w, unauthorized("invalid email or password"))
		return
	}

	access, refresh, err := h.userKeys.IssuePair(user.UUID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh})
}

// Refresh handles POST /api/-/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIError(w, err)
		return
	}

	claims, err := h.userKeys.Verify(req.RefreshToken, jwtkeys.AudienceRefresh)
	if err != nil {
		writeAPIError(w, unauthorized("invalid refresh token"))
		return
	}

	user, err := h.db.GetUserByUUID(claims.Subject)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if user == nil {
		writeAPIError(w, unauthorized("invalid refresh token"))
		return
	}

	access, refresh, err := h.userKeys.IssuePair(user.UUID)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh})
}

// Me handles GET /api/-/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeAPIError(w, unauthorized("missing credentials"))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// RequireAccess enforces a Bearer JWT with aud=urn:defcon:access on the
// routes routes.go wraps with it; the health, status, metrics, token,
// refresh and runner routes are not wrapped.
func (h *Handler) RequireAccess(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeAPIError(w, unauthorized("missing bearer token"))
			return
		}
		claims, err := h.userKeys.Verify(token, jwtkeys.AudienceAccess)
		if err != nil {
			writeAPIError(w, unauthorized("invalid or expired token"))
			return
		}
		user, err := h.db.GetUserByUUID(claims.Subject)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		if user == nil {
			writeAPIError(w, unauthorized("invalid or expired token"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next(w, r.WithContext(ctx))
	}
}

// RequireRunner enforces a Bearer JWT signed ES256 with the controller's
// private key, with the `{iat, exp, site}` claims described in §6.
func (h *Handler) RequireRunner(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.runnerKeys == nil {
			writeAPIError(w, &apiError{status: http.StatusServiceUnavailable, code: "runner_disabled", message: "runner protocol is not configured"})
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeAPIError(w, unauthorized("missing bearer token"))
			return
		}
		claims, err := h.runnerKeys.Verify(token)
		if err != nil {
			writeAPIError(w, unauthorized("invalid or expired runner token"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyRunnerClaims, claims)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	return strings.TrimPrefix(auth, prefix), true
}

func userFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(*model.User)
	return u, ok
}

func runnerClaimsFromContext(ctx context.Context) (jwtkeys.RunnerClaims, bool) {
	c, ok := ctx.Value(ctxKeyRunnerClaims).(jwtkeys.RunnerClaims)
	return c, ok
}
