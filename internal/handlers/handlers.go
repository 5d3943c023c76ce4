// Package handlers is the JSON HTTP adapter over the recruitment service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/apperr"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/recruitment"
	"recruitment-tracker-go/internal/store"
)

// EventSource is the live side of the event bus.
type EventSource interface {
	Subscribe(ctx context.Context) *redis.PubSub
	RecentEvents(ctx context.Context, limit int) ([]models.StatusEvent, error)
}

// PushKeys exposes the VAPID public key to browsers.
type PushKeys interface {
	PublicKey() string
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Service  *recruitment.Service
	Users    store.UserStore
	Push     store.PushStore
	Events   EventSource
	VAPID    PushKeys
	Sessions *sessions.CookieStore
	Health   map[string]Pinger
	Gatherer prometheus.Gatherer
	Timeout  time.Duration
	Log      *zap.Logger
}

// NewHandler builds the session cookie store from secret. Cookies are marked
// Secure when secure is true.
func NewHandler(svc *recruitment.Service, users store.UserStore, push store.PushStore, secret string, secure bool, log *zap.Logger) *Handler {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Handler{
		Service:  svc,
		Users:    users,
		Push:     push,
		Sessions: cs,
		Health:   map[string]Pinger{},
		Gatherer: prometheus.DefaultGatherer,
		Timeout:  10 * time.Second,
		Log:      log,
	}
}

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Session
	mux.HandleFunc("POST /api/login", h.timeout(h.LoginHandler))
	mux.HandleFunc("POST /api/login/2fa", h.timeout(h.Verify2FALoginHandler))
	mux.HandleFunc("POST /api/logout", h.LogoutHandler)
	mux.HandleFunc("GET /api/me", h.api(h.GetCurrentUserHandler))
	mux.HandleFunc("POST /api/me/password", h.api(h.ChangePasswordHandler))
	mux.HandleFunc("POST /api/me/2fa", h.api(h.Enable2FAHandler))
	mux.HandleFunc("DELETE /api/me/2fa", h.api(h.Disable2FAHandler))

	// Admin user management
	mux.HandleFunc("GET /api/admin/users", h.admin(h.GetUsersHandler))
	mux.HandleFunc("POST /api/admin/users", h.admin(h.CreateUserHandler))
	mux.HandleFunc("PUT /api/admin/users/{id}", h.admin(h.UpdateUserHandler))
	mux.HandleFunc("DELETE /api/admin/users/{id}", h.admin(h.DeleteUserHandler))
	mux.HandleFunc("POST /api/admin/users/{id}/password", h.admin(h.AdminResetPasswordHandler))
	mux.HandleFunc("DELETE /api/admin/users/{id}/2fa", h.admin(h.AdminDisable2FAHandler))
	mux.HandleFunc("GET /api/admin/audit", h.admin(h.GetAuditLogs))

	// Grants
	mux.HandleFunc("GET /api/features", h.api(h.FeaturesHandler))
	mux.HandleFunc("GET /api/grants", h.api(h.GrantsHandler))
	mux.HandleFunc("POST /api/grants", h.api(h.GrantHandler))
	mux.HandleFunc("DELETE /api/grants/{user}/{feature}", h.api(h.RevokeHandler))

	// Entities, ledger, contacts, privacy
	mux.HandleFunc("POST /api/entities", h.api(h.RegisterEntityHandler))
	mux.HandleFunc("GET /api/entities", h.api(h.ListEntitiesHandler))
	mux.HandleFunc("GET /api/entities/{id}", h.api(h.GetEntityHandler))
	mux.HandleFunc("DELETE /api/entities/{id}", h.api(h.DeleteEntityHandler))
	mux.HandleFunc("POST /api/entities/{id}/transitions", h.api(h.TransitionHandler))
	mux.HandleFunc("GET /api/entities/{id}/history", h.api(h.HistoryHandler))
	mux.HandleFunc("GET /api/entities/{id}/verify", h.api(h.VerifyHistoryHandler))
	mux.HandleFunc("POST /api/entities/{id}/contacts", h.api(h.RecordContactHandler))
	mux.HandleFunc("POST /api/entities/{id}/publish", h.api(h.PublishHandler))
	mux.HandleFunc("POST /api/entities/{id}/primary-target", h.api(h.SeedPrimaryTargetHandler))
	mux.HandleFunc("PUT /api/entities/{id}/assignment", h.api(h.AssignTargetHandler))
	mux.HandleFunc("GET /api/contacts", h.api(h.ListContactsHandler))
	mux.HandleFunc("GET /api/tally/{kind}", h.api(h.TallyHandler))

	// Campaigns
	mux.HandleFunc("POST /api/campaigns", h.api(h.CreateCampaignHandler))
	mux.HandleFunc("GET /api/campaigns", h.api(h.ListCampaignsHandler))
	mux.HandleFunc("GET /api/campaigns/{id}", h.api(h.GetCampaignHandler))
	mux.HandleFunc("DELETE /api/campaigns/{id}", h.api(h.DeleteCampaignHandler))
	mux.HandleFunc("POST /api/campaigns/{id}/call-lists", h.api(h.CreateCallListHandler))
	mux.HandleFunc("GET /api/campaigns/{id}/call-lists", h.api(h.ListCallListsHandler))
	mux.HandleFunc("DELETE /api/call-lists/{id}", h.api(h.DeleteCallListHandler))

	// Events and push. The stream is long-lived and skips the timeout.
	mux.HandleFunc("GET /api/events", h.AuthMiddleware(h.SSEHandler))
	mux.HandleFunc("GET /api/events/recent", h.api(h.RecentEventsHandler))
	mux.HandleFunc("GET /api/push/key", h.GetVAPIDKeyHandler)
	mux.HandleFunc("POST /api/push/subscribe", h.api(h.SubscribePushHandler))

	mux.Handle("GET /metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", h.HealthHandler)

	return mux
}

func (h *Handler) api(next http.HandlerFunc) http.HandlerFunc {
	return h.AuthMiddleware(h.timeout(next))
}

func (h *Handler) admin(next http.HandlerFunc) http.HandlerFunc {
	return h.AuthMiddleware(AdminMiddleware(h.timeout(next)))
}

// timeout bounds the request context. Storage calls observe it and surface a
// STORAGE_UNAVAILABLE error when it expires.
func (h *Handler) timeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.Timeout <= 0 {
			next(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

// HealthHandler pings every registered dependency.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.Health))
	for name, p := range h.Health {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code     apperr.Code       `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// writeError renders err as {"error": {...}}. Internal details stay in the
// log.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Code: apperr.CodeOf(err), Message: "internal error"}
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Code != apperr.CodeInternal {
		body.Message = ae.Message
		body.Metadata = ae.Metadata
	}
	if body.Code == apperr.CodeInternal || body.Code == apperr.CodeStorageUnavailable {
		h.Log.Error("request failed",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.String("code", string(body.Code)), zap.Error(err))
	}
	writeJSON(w, body.Code.HTTPStatus(), map[string]errorBody{"error": body})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid request body", err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, apperr.WithMetadata(apperr.CodeValidation, "invalid query parameter", map[string]string{key: raw})
	}
	return v, nil
}

func queryPage(r *http.Request) (models.Page, error) {
	after, err := queryInt(r, "after")
	if err != nil {
		return models.Page{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return models.Page{}, err
	}
	return models.Page{After: int64(after), Limit: limit}, nil
}
