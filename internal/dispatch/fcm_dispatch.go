package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/field-dispatch/internal/models"
)

// FCMDispatcher posts JSON to the FCM HTTPv1 endpoint using a server
// key or oauth token. Tokens are looked up per user by the caller's
// token resolver.
type FCMDispatcher struct {
	Endpoint string
	Key      string
	Client   *http.Client

	// TokenFor maps a user id to their device token; empty string
	// means no registered device.
	TokenFor func(userID string) string
}

func NewFCMDispatcher(endpoint, key string, tokenFor func(string) string) *FCMDispatcher {
	return &FCMDispatcher{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}, TokenFor: tokenFor}
}

func (f *FCMDispatcher) Notify(userID string, n models.Notification) error {
	var token string
	if f.TokenFor != nil {
		token = f.TokenFor(userID)
	}
	if token == "" {
		return ErrNoSession
	}
	body := map[string]any{
		"message": map[string]any{
			"token": token,
			"notification": map[string]string{
				"title": n.Title,
				"body":  n.Message,
			},
			"data": map[string]string{
				"type":       n.Type,
				"related_id": n.RelatedID,
			},
		},
	}
	b, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
