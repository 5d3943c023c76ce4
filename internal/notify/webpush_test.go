package notify

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/models"
)

type fakePushStore struct {
	mu      sync.Mutex
	subs    []models.PushSubscription
	deleted []string
}

func (f *fakePushStore) SavePushSubscription(_ context.Context, userID, endpoint, p256dh, auth string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, models.PushSubscription{UserID: userID, Endpoint: endpoint, P256dh: p256dh, Auth: auth})
	return nil
}

func (f *fakePushStore) GetPushSubscriptions(_ context.Context, userID string) ([]models.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PushSubscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakePushStore) DeletePushSubscription(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, endpoint)
	return nil
}

func browserKeys(t *testing.T) (string, string) {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(auth)
}

func TestNotifyAssignment(t *testing.T) {
	var mu sync.Mutex
	hits := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits[r.URL.Path]++
		mu.Unlock()
		assert.Equal(t, "aes128gcm", r.Header.Get("Content-Encoding"))
		assert.Contains(t, r.Header.Get("Authorization"), "vapid")
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusGone)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	p256dh, auth := browserKeys(t)
	subs := &fakePushStore{}
	require.NoError(t, subs.SavePushSubscription(context.Background(), "caller-a", srv.URL+"/live", p256dh, auth))
	require.NoError(t, subs.SavePushSubscription(context.Background(), "caller-a", srv.URL+"/gone", p256dh, auth))
	require.NoError(t, subs.SavePushSubscription(context.Background(), "caller-b", srv.URL+"/other", p256dh, auth))

	wp, err := NewWebPush(subs, VAPIDKeys{}, zap.NewNop())
	require.NoError(t, err)
	wp.WithHTTPClient(srv.Client())
	assert.NotEmpty(t, wp.PublicKey())

	err = wp.NotifyAssignment(context.Background(), "caller-a", models.Entity{
		ID: "target-42", Kind: models.KindChallenger, Name: "Pat Doe", DistrictCode: "HD-12",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, hits["/live"])
	assert.Equal(t, 1, hits["/gone"])
	assert.Zero(t, hits["/other"])
	assert.Equal(t, []string{srv.URL + "/gone"}, subs.deleted)
}

func TestNotifyAssignmentWithoutSubscriptions(t *testing.T) {
	wp, err := NewWebPush(&fakePushStore{}, VAPIDKeys{}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, wp.NotifyAssignment(context.Background(), "nobody", models.Entity{ID: "x"}))
}
