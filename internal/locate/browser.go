package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/field-dispatch/internal/models"
)

// BrowserProvider takes a single-shot fix from a browser geolocation
// bridge. The bridge wraps navigator.geolocation.getCurrentPosition and
// reports W3C PositionError codes back as JSON.
type BrowserProvider struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

func NewBrowserProvider(endpoint string, timeout time.Duration) *BrowserProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BrowserProvider{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}, Timeout: timeout}
}

func (b *BrowserProvider) Current(ctx context.Context) (c models.Coordinates, err error) {
	// single-shot, high accuracy, never a cached reading
	url := fmt.Sprintf("%s/position?enableHighAccuracy=true&maximumAge=0&timeout=%d",
		b.Endpoint, b.Timeout.Milliseconds())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return c, failed(KindCaptureFailed, "%v", err)
	}
	resp, err := b.Client.Do(req)
	if err != nil {
		return c, failed(KindCaptureFailed, "geolocation request: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Coords *struct {
			Latitude  float64  `json:"latitude"`
			Longitude float64  `json:"longitude"`
			Accuracy  *float64 `json:"accuracy"`
		} `json:"coords"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return c, failed(KindCaptureFailed, "decode position: %v", err)
	}
	if out.Error != nil {
		switch out.Error.Code {
		case 1: // PERMISSION_DENIED
			return c, failed(KindPermissionDenied, "%s", out.Error.Message)
		case 2: // POSITION_UNAVAILABLE
			return c, failed(KindServicesDisabled, "%s", out.Error.Message)
		default: // TIMEOUT and anything else
			return c, failed(KindCaptureFailed, "%s", out.Error.Message)
		}
	}
	if out.Coords == nil {
		return c, failed(KindCaptureFailed, "empty position response")
	}
	c.Latitude = out.Coords.Latitude
	c.Longitude = out.Coords.Longitude
	c.Accuracy = out.Coords.Accuracy
	return c, nil
}
