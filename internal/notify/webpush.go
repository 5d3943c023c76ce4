// Package notify delivers Web Push notifications to callers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"recruitment-tracker-go/internal/models"
	"recruitment-tracker-go/internal/store"
)

// VAPIDKeys identifies this server to push services.
type VAPIDKeys struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// WebPush sends assignment notifications to every subscription of a user.
type WebPush struct {
	subs       store.PushStore
	keys       VAPIDKeys
	httpClient webpush.HTTPClient
	log        *zap.Logger
}

// NewWebPush generates a throwaway VAPID pair when none is configured.
// Browsers subscribed under a generated key stop receiving pushes after a
// restart, so the pair is logged for persisting.
func NewWebPush(subs store.PushStore, keys VAPIDKeys, log *zap.Logger) (*WebPush, error) {
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return nil, fmt.Errorf("generate VAPID keys: %w", err)
		}
		keys.PrivateKey = privateKey
		keys.PublicKey = publicKey
		log.Warn("VAPID keys not configured, generated new ones",
			zap.String("VAPID_PUBLIC_KEY", publicKey),
			zap.String("VAPID_PRIVATE_KEY", privateKey))
	}
	if keys.Subscriber == "" {
		keys.Subscriber = "mailto:admin@example.com"
	}
	return &WebPush{subs: subs, keys: keys, httpClient: http.DefaultClient, log: log}, nil
}

// WithHTTPClient swaps the client used to reach push services.
func (w *WebPush) WithHTTPClient(c webpush.HTTPClient) *WebPush {
	w.httpClient = c
	return w
}

func (w *WebPush) PublicKey() string {
	return w.keys.PublicKey
}

type payload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind"`
}

// NotifyAssignment tells callerID that target was assigned to them. Expired
// subscriptions (404/410) are removed.
func (w *WebPush) NotifyAssignment(ctx context.Context, callerID string, target models.Entity) error {
	subs, err := w.subs.GetPushSubscriptions(ctx, callerID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return nil
	}

	message, err := json.Marshal(payload{
		Title:    "New assignment",
		Body:     fmt.Sprintf("%s (%s) was assigned to you", target.Name, target.DistrictCode),
		EntityID: target.ID,
		Kind:     string(target.Kind),
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		s := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}

		resp, err := webpush.SendNotificationWithContext(ctx, message, s, &webpush.Options{
			HTTPClient:      w.httpClient,
			Subscriber:      w.keys.Subscriber,
			VAPIDPublicKey:  w.keys.PublicKey,
			VAPIDPrivateKey: w.keys.PrivateKey,
			TTL:             30,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("push to %s: %w", sub.Endpoint, err))
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			if err := w.subs.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
				errs = append(errs, err)
			}
			w.log.Info("removed expired push subscription", zap.String("user_id", callerID))
		case resp.StatusCode >= 300:
			errs = append(errs, fmt.Errorf("push to %s: status %d", sub.Endpoint, resp.StatusCode))
		}
	}
	return errors.Join(errs...)
}
