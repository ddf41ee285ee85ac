package api

import (
	"net/http"
	"time"

	"github.com/soaringjerry/stsportal/internal/middleware"
	"github.com/soaringjerry/stsportal/internal/models"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createUserRequest struct {
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8"`
	Role     models.Role `json:"role" validate:"required,oneof=super_admin agency_admin team_leader"`
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := rt.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/auth/me
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ClaimsFromContext(r.Context())
	u, err := rt.svc.Auth.Me(r.Context(), c.UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// POST /api/auth/logout revokes the bearer token until its own expiry.
func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	c, _ := middleware.ClaimsFromContext(r.Context())
	exp := time.Now().Add(rt.svc.Auth.TokenTTL())
	if c.ExpiresAt != nil {
		exp = c.ExpiresAt.Time
	}
	if err := rt.svc.Auth.Logout(r.Context(), middleware.TokenFromContext(r.Context()), exp); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/admin/users
func (rt *Router) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := rt.svc.Auth.CreateUser(r.Context(), actor(r), req.Email, req.Password, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// actor names the caller in audit lines.
func actor(r *http.Request) string {
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		return c.Email
	}
	return "anonymous"
}
