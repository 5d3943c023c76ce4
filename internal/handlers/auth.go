package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
)

const sessionName = "recruitment-session"

type actorKey struct{}

// ActorFrom returns the authenticated actor stored by AuthMiddleware.
func ActorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok
}

func withActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func userView(u models.User) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"username":     u.Username,
		"role":         u.Role,
		"totp_enabled": u.TOTPEnabled,
	}
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, u models.User) error {
	session, _ := h.Sessions.Get(r, sessionName)
	delete(session.Values, "pending_user_id")
	session.Values["user_id"] = u.ID
	session.Values["username"] = u.Username
	session.Values["role"] = u.Role
	return session.Save(r, w)
}

// LoginHandler checks the password. Users with 2FA get a pending session and
// finish at /api/login/2fa, unless the code was sent along.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"code,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.Users.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		h.writeError(w, r, err)
		return
	}
	if err != nil || !user.CheckPassword(req.Password) {
		writeJSON(w, http.StatusUnauthorized, map[string]errorBody{
			"error": {Code: apperr.CodeAuthorization, Message: "invalid credentials"},
		})
		return
	}

	if user.TOTPEnabled && req.Code == "" {
		session, _ := h.Sessions.Get(r, sessionName)
		session.Values["pending_user_id"] = user.ID
		if err := session.Save(r, w); err != nil {
			h.writeError(w, r, apperr.Wrap(apperr.CodeInternal, "save session", err))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"requires_2fa": true})
		return
	}
	if !user.CheckSecondFactor(req.Code) {
		writeJSON(w, http.StatusUnauthorized, map[string]errorBody{
			"error": {Code: apperr.CodeAuthorization, Message: "invalid verification code"},
		})
		return
	}

	if err := h.startSession(w, r, user); err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.CodeInternal, "save session", err))
		return
	}
	h.Log.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", user.Role))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": userView(user)})
}

// LogoutHandler clears the session.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := h.Sessions.Get(r, sessionName)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	_ = session.Save(r, w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// AuthMiddleware rejects requests without a session and puts the actor in
// the request context.
func (h *Handler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, _ := h.Sessions.Get(r, sessionName)
		userID, ok := session.Values["user_id"].(string)
		if !ok || userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]errorBody{
				"error": {Code: apperr.CodeAuthorization, Message: "login required"},
			})
			return
		}
		role, _ := session.Values["role"].(string)
		next(w, r.WithContext(withActor(r.Context(), models.Actor{ID: userID, Role: role})))
	}
}

// AdminMiddleware requires the admin role. It must run after AuthMiddleware.
func AdminMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, _ := ActorFrom(r.Context())
		if !actor.IsAdmin() {
			writeJSON(w, http.StatusForbidden, map[string]errorBody{
				"error": {Code: apperr.CodeAuthorization, Message: "admin only"},
			})
			return
		}
		next(w, r)
	}
}

// EnsureAdmin creates the bootstrap admin when there are no users yet.
func EnsureAdmin(ctx context.Context, users interface {
	GetUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, username, password, role string) (models.User, error)
}, username, password string, log *zap.Logger) error {
	existing, err := users.GetUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	user, err := users.CreateUser(ctx, username, password, models.RoleAdmin)
	if err != nil {
		return err
	}
	log.Warn("created default admin user; change its password", zap.String("username", user.Username))
	return nil
}
