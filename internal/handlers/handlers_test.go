package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/handlers"
	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/recruitment"
	"recruitment-tracker-go/internal/store"
	"recruitment-tracker-go/internal/store/storetest"
)

type env struct {
	srv   *httptest.Server
	store *store.SQLStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := storetest.New(t)
	reg := prometheus.NewRegistry()
	svc := recruitment.NewService(s, zap.NewNop(), recruitment.WithMetrics(recruitment.NewMetrics(reg)))

	h := handlers.NewHandler(svc, s, s, "test-secret-0123456789abcdef0123", false, zap.NewNop())
	h.Gatherer = reg
	h.Health["database"] = s
	require.NoError(t, handlers.EnsureAdmin(context.Background(), s, "admin", "admin123", zap.NewNop()))

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: s}
}

func (e *env) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 5 * time.Second}
}

func (e *env) login(t *testing.T, username, password string) *http.Client {
	t.Helper()
	c := e.client(t)
	resp := do(t, c, http.MethodPost, e.srv.URL+"/api/login", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	return c
}

type response struct {
	status int
	body   []byte
}

func (r response) json(t *testing.T) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(r.body, &out), string(r.body))
	return out
}

func (r response) errorCode(t *testing.T) string {
	t.Helper()
	body := r.json(t)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, string(r.body))
	return errObj["code"].(string)
}

func do(t *testing.T, c *http.Client, method, url string, body any) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: out.Bytes()}
}

func TestRequiresLogin(t *testing.T) {
	e := newEnv(t)
	resp := do(t, e.client(t), http.MethodGet, e.srv.URL+"/api/entities?kind=candidate", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
	assert.Equal(t, "AUTHORIZATION", resp.errorCode(t))

	resp = do(t, e.client(t), http.MethodPost, e.srv.URL+"/api/login", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestEntityLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "admin", "admin123")
	base := e.srv.URL + "/api"

	resp := do(t, admin, http.MethodPost, base+"/entities", map[string]any{
		"id": "target-42", "kind": "challenger", "name": "Pat Doe", "district_code": "HD-12",
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))

	resp = do(t, admin, http.MethodPost, base+"/entities/target-42/transitions", map[string]any{
		"to":      "confirmed",
		"contact": map[string]any{"method": "phone", "outcome": "positive"},
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	out := resp.json(t)
	assert.Equal(t, "confirmed", out["entity"].(map[string]any)["status"])
	assert.NotNil(t, out["contact"])

	resp = do(t, admin, http.MethodGet, base+"/entities/target-42/history", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.json(t)["history"], 1)

	resp = do(t, admin, http.MethodGet, base+"/entities/target-42/verify", nil)
	assert.Equal(t, http.StatusOK, resp.status)

	resp = do(t, admin, http.MethodGet, base+"/tally/challenger", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.EqualValues(t, 1, resp.json(t)["total"])

	resp = do(t, admin, http.MethodPost, base+"/entities/target-42/transitions", map[string]any{"to": "committed"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
	assert.Equal(t, "VALIDATION", resp.errorCode(t))

	resp = do(t, admin, http.MethodGet, base+"/entities/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)
	assert.Equal(t, "NOT_FOUND", resp.errorCode(t))

	resp = do(t, admin, http.MethodPost, base+"/entities/target-42/publish", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, true, resp.json(t)["privacy"].(map[string]any)["is_public"])
}

func TestGrantsGateStaff(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "admin", "admin123")
	base := e.srv.URL + "/api"

	resp := do(t, admin, http.MethodPost, base+"/admin/users", map[string]any{
		"username": "staff_a", "password": "password1", "role": "staff",
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	staffID := resp.json(t)["user"].(map[string]any)["id"].(string)

	resp = do(t, admin, http.MethodPost, base+"/entities", map[string]any{"id": "c1", "kind": "candidate", "name": "Sam"})
	require.Equal(t, http.StatusCreated, resp.status)

	staff := e.login(t, "staff_a", "password1")
	resp = do(t, staff, http.MethodGet, base+"/entities/c1", nil)
	assert.Equal(t, http.StatusForbidden, resp.status)
	assert.Equal(t, "AUTHORIZATION", resp.errorCode(t))

	resp = do(t, staff, http.MethodPost, base+"/grants", map[string]any{"user_id": staffID, "feature_slug": "candidates"})
	assert.Equal(t, http.StatusForbidden, resp.status)
	resp = do(t, staff, http.MethodGet, base+"/admin/users", nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = do(t, admin, http.MethodPost, base+"/grants", map[string]any{"user_id": staffID, "feature_slug": "candidates"})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))

	resp = do(t, staff, http.MethodGet, base+"/entities/c1", nil)
	assert.Equal(t, http.StatusOK, resp.status)
	resp = do(t, staff, http.MethodGet, base+"/me", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, []any{"candidates"}, resp.json(t)["features"])

	resp = do(t, admin, http.MethodDelete, base+"/grants/"+staffID+"/candidates", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, true, resp.json(t)["removed"])

	resp = do(t, staff, http.MethodGet, base+"/entities/c1", nil)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = do(t, admin, http.MethodGet, base+"/admin/audit", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, resp.json(t)["logs"], 3)
}

func TestTwoFactorLogin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, err := e.store.CreateUser(ctx, "staff_b", "password1", models.RoleStaff)
	require.NoError(t, err)
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "Recruitment Tracker", AccountName: user.Username})
	require.NoError(t, err)
	require.NoError(t, e.store.UpdateUser2FA(ctx, user.ID, key.Secret(), true))

	c := e.client(t)
	resp := do(t, c, http.MethodPost, e.srv.URL+"/api/login", map[string]string{"username": "staff_b", "password": "password1"})
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, true, resp.json(t)["requires_2fa"])

	resp = do(t, c, http.MethodGet, e.srv.URL+"/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = do(t, c, http.MethodPost, e.srv.URL+"/api/login/2fa", map[string]string{"code": "000000x"})
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)
	resp = do(t, c, http.MethodPost, e.srv.URL+"/api/login/2fa", map[string]string{"code": code})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))

	resp = do(t, c, http.MethodGet, e.srv.URL+"/api/me", nil)
	assert.Equal(t, http.StatusOK, resp.status)
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	resp := do(t, e.client(t), http.MethodGet, e.srv.URL+"/healthz", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "ok", resp.json(t)["checks"].(map[string]any)["database"])

	admin := e.login(t, "admin", "admin123")
	resp = do(t, admin, http.MethodPost, e.srv.URL+"/api/entities", map[string]any{"id": "sv-1", "kind": "speaker_vote", "name": "Rep. Lee"})
	require.Equal(t, http.StatusCreated, resp.status)
	resp = do(t, admin, http.MethodPost, e.srv.URL+"/api/entities/sv-1/transitions", map[string]any{"to": "leaning_yes"})
	require.Equal(t, http.StatusCreated, resp.status)

	resp = do(t, e.client(t), http.MethodGet, e.srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), `recruitment_status_transitions_total{kind="speaker_vote",to="leaning_yes"} 1`)
}

func TestEventsWithoutBusAreUnavailable(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "admin", "admin123")
	resp := do(t, admin, http.MethodGet, e.srv.URL+"/api/events/recent", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.status)
	assert.Equal(t, "STORAGE_UNAVAILABLE", resp.errorCode(t))
}

func TestSeedPrimaryTargetOverHTTP(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "admin", "admin123")
	base := e.srv.URL + "/api"

	resp := do(t, admin, http.MethodPost, base+"/entities", map[string]any{
		"id": "vote-7", "kind": "speaker_vote", "name": "Rep. Lee", "district_code": "HD-7",
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	assert.EqualValues(t, 5, resp.json(t)["entity"].(map[string]any)["confidence_level"])

	resp = do(t, admin, http.MethodPost, base+"/entities/vote-7/transitions", map[string]any{
		"to": "opposed", "confidence_level": 9,
	})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	assert.EqualValues(t, 9, resp.json(t)["entity"].(map[string]any)["confidence_level"])

	resp = do(t, admin, http.MethodPost, base+"/entities/vote-7/primary-target", nil)
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
	target := resp.json(t)["entity"].(map[string]any)
	assert.Equal(t, "challenger", target["kind"])
	assert.Equal(t, "recruiting", target["status"])
	assert.Equal(t, "HD-7", target["district_code"])
	assert.Equal(t, "vote-7", target["source_entity_id"])

	resp = do(t, admin, http.MethodPost, base+"/entities/vote-7/primary-target", nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, "CONFLICT", resp.errorCode(t))
}
