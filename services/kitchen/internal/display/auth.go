package display

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/pos/pkg/enums/role"
	"github.com/appetiteclub/pos/pkg/lifecycle"
	"github.com/appetiteclub/pos/pkg/store"
	"github.com/appetiteclub/pos/services/kitchen/internal/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string `json:"session_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	UserID    string `json:"user_id"`
	ExpiresAt string `json:"expires_at"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Login")
	defer finish()
	log := h.log(r)

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
	if err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		apt.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.Username == "" || req.Password == "" {
		apt.RespondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrUnauthorized) {
			log.Debug("login rejected", "username", req.Username)
			apt.RespondError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		log.Error("login failed", "username", req.Username, "error", err)
		apt.RespondError(w, http.StatusBadGateway, "Authentication service unavailable")
		return
	}

	if role.ByName(res.Role) == nil {
		log.Info("login with unknown role", "username", res.Username, "role", res.Role)
		apt.RespondError(w, http.StatusForbidden, "Role not allowed")
		return
	}

	s := session.New(res, h.cfg.SessionTTL)
	if err := h.sessions.Save(r.Context(), s); err != nil {
		log.Error("failed to save session", "error", err)
		apt.RespondError(w, http.StatusInternalServerError, "Session error")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
	})

	log.Info("user signed in", "username", s.Username, "role", s.Role)
	apt.Respond(w, http.StatusOK, loginResponse{
		SessionID: s.ID,
		Username:  s.Username,
		Role:      s.Role,
		UserID:    s.UserID,
		ExpiresAt: s.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}, nil)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.Logout")
	defer finish()

	if id := h.sessionID(r); id != "" {
		if err := h.sessions.Delete(r.Context(), id); err != nil {
			h.log(r).Error("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	w.WriteHeader(http.StatusNoContent)
}

// sessionID reads the session cookie, or a bearer session id for API clients.
func (h *Handler) sessionID(r *http.Request) string {
	if cookie, err := r.Cookie(h.cfg.SessionName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// RequireSession loads the operator session and exposes it, and the actor
// name used by the audit trail, through the request context.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := h.sessionID(r)
		if id == "" {
			apt.RespondError(w, http.StatusUnauthorized, "Sign in required")
			return
		}

		s, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			if !errors.Is(err, session.ErrNotFound) && !errors.Is(err, session.ErrExpired) {
				h.log(r).Error("cannot load session", "error", err)
			}
			apt.RespondError(w, http.StatusUnauthorized, "Sign in required")
			return
		}

		ctx := session.WithSession(r.Context(), s)
		ctx = lifecycle.WithActor(ctx, s.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets through sessions holding one of roles. Admin always passes.
func (h *Handler) RequireRole(roles ...role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := session.FromContext(r.Context())
			if s == nil {
				apt.RespondError(w, http.StatusUnauthorized, "Sign in required")
				return
			}
			if !role.Allowed(s.Role, roles...) {
				apt.RespondError(w, http.StatusForbidden, "Not allowed for role "+s.Role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
