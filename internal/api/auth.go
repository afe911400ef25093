package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/acdb/stockroom/internal/auth"
	"github.com/acdb/stockroom/internal/db"
	"github.com/acdb/stockroom/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB        db.Querier
	JWTSecret string
}

type loginRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := store.GetMember(r.Context(), h.DB, req.UserID)
	if err != nil {
		slog.Error("loading member", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "storage is unavailable")
		return
	}
	if member == nil || !auth.CheckPassword(member.PasswordHash, req.Password) {
		slog.Warn("login failed", "user_id", req.UserID, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, member)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	slog.Info("member logged in", "user_id", member.UserID, "admin", member.IsAdmin)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	expires := time.Now().Add(auth.TokenExpiry)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, expires); err != nil {
		slog.Error("revoking token", "error", err)
		jsonError(w, http.StatusServiceUnavailable, "storage is unavailable")
		return
	}

	slog.Info("member logged out", "user_id", claims.UserID())
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}
