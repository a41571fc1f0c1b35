package locate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/example/field-dispatch/internal/models"
)

// NativeProvider talks to the on-device positioning daemon. Unlike the
// browser path, native platforms distinguish "location services off at
// the OS level" from "this app lacks permission", and both are checked
// before a fix is requested.
type NativeProvider struct {
	Endpoint    string
	Client      *http.Client
	SettleDelay time.Duration

	mu       sync.Mutex
	warmedUp bool
}

func NewNativeProvider(endpoint string, settle time.Duration) *NativeProvider {
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	return &NativeProvider{Endpoint: endpoint, Client: &http.Client{Timeout: 15 * time.Second}, SettleDelay: settle}
}

func (n *NativeProvider) Current(ctx context.Context) (c models.Coordinates, err error) {
	enabled, err := n.servicesEnabled(ctx)
	if err != nil {
		return c, failed(KindCaptureFailed, "services check: %v", err)
	}
	if !enabled {
		return c, failed(KindServicesDisabled, "location services are disabled on this device")
	}

	granted, err := n.requestPermission(ctx)
	if err != nil {
		return c, failed(KindCaptureFailed, "permission request: %v", err)
	}
	if !granted {
		return c, failed(KindPermissionDenied, "foreground location permission not granted")
	}

	// The first fix of a session comes right after the sensor powers up
	// and tends to be garbage; give it a moment to settle.
	if n.firstFix() {
		select {
		case <-time.After(n.SettleDelay):
		case <-ctx.Done():
			return c, failed(KindCaptureFailed, "%v", ctx.Err())
		}
	}

	return n.fix(ctx)
}

func (n *NativeProvider) firstFix() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.warmedUp {
		return false
	}
	n.warmedUp = true
	return true
}

func (n *NativeProvider) servicesEnabled(ctx context.Context) (bool, error) {
	var out struct {
		Enabled bool `json:"enabled"`
	}
	if err := n.getJSON(ctx, "/services", &out); err != nil {
		return false, err
	}
	return out.Enabled, nil
}

func (n *NativeProvider) requestPermission(ctx context.Context) (bool, error) {
	var out struct {
		Status string `json:"status"` // granted, denied, restricted
	}
	if err := n.postJSON(ctx, "/permission?scope=foreground", &out); err != nil {
		return false, err
	}
	return out.Status == "granted", nil
}

func (n *NativeProvider) fix(ctx context.Context) (c models.Coordinates, err error) {
	var out struct {
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Accuracy  *float64 `json:"accuracy"`
	}
	if err := n.getJSON(ctx, "/fix?accuracy=high", &out); err != nil {
		return c, failed(KindCaptureFailed, "position fix: %v", err)
	}
	c.Latitude = out.Latitude
	c.Longitude = out.Longitude
	c.Accuracy = out.Accuracy
	return c, nil
}

func (n *NativeProvider) getJSON(ctx context.Context, path string, out any) error {
	return n.doJSON(ctx, http.MethodGet, path, out)
}

func (n *NativeProvider) postJSON(ctx context.Context, path string, out any) error {
	return n.doJSON(ctx, http.MethodPost, path, out)
}

func (n *NativeProvider) doJSON(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, n.Endpoint+path, nil)
	if err != nil {
		return err
	}
	resp, err := n.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("positioning daemon returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
