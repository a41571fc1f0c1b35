package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/example/field-dispatch/internal/models"
)

// PushDispatcher tries the live WebSocket session first and falls back
// to an HTTP push provider for users who are not connected.
type PushDispatcher struct {
	Endpoint string // provider HTTP endpoint
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushDispatcher(endpoint string, ws *WSRegistry) *PushDispatcher {
	return &PushDispatcher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushDispatcher) Notify(userID string, n models.Notification) error {
	if p.WS != nil {
		if err := p.WS.Notify(userID, n); err == nil {
			return nil
		} else if !errors.Is(err, ErrNoSession) {
			return err
		}
	}
	if p.Endpoint == "" {
		return ErrNoSession
	}
	b, _ := json.Marshal(map[string]any{"user_id": userID, "notification": n})
	_, err := p.Client.Post(p.Endpoint, "application/json", bytes.NewReader(b))
	return err
}
