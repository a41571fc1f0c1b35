package locate

import (
	"context"
	"errors"
	"testing"

	"github.com/example/field-dispatch/internal/models"
)

type fakeProvider struct {
	c   models.Coordinates
	err error
}

func (f *fakeProvider) Current(ctx context.Context) (models.Coordinates, error) { return f.c, f.err }

func TestCaptureValidFix(t *testing.T) {
	acc := 12.5
	p := &fakeProvider{c: models.Coordinates{Latitude: 30.2700, Longitude: -97.7400, Accuracy: &acc}}
	got, err := Capture(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Latitude != 30.2700 || got.Longitude != -97.7400 {
		t.Fatalf("wrong fix: %+v", got)
	}
	if got.Accuracy == nil || *got.Accuracy != 12.5 {
		t.Fatalf("accuracy not carried through: %+v", got.Accuracy)
	}
}

func TestCaptureRejectsDegenerate(t *testing.T) {
	cases := []models.Coordinates{
		{Latitude: 0, Longitude: 0},
		{Latitude: 91, Longitude: 0.1},
		{Latitude: -91, Longitude: 0.1},
		{Latitude: 0.1, Longitude: 181},
		{Latitude: 0.1, Longitude: -181},
	}
	for _, c := range cases {
		_, err := Capture(context.Background(), &fakeProvider{c: c})
		var le *Error
		if !errors.As(err, &le) {
			t.Fatalf("expected locate error for %+v, got %v", c, err)
		}
		if le.Kind != KindOutOfRange {
			t.Fatalf("expected out-of-range for %+v, got %s", c, le.Kind)
		}
	}
}

func TestCaptureAcceptsBoundaryValues(t *testing.T) {
	cases := []models.Coordinates{
		{Latitude: 90, Longitude: 180},
		{Latitude: -90, Longitude: -180},
		{Latitude: 0, Longitude: 10},
		{Latitude: 10, Longitude: 0},
	}
	for _, c := range cases {
		if _, err := Capture(context.Background(), &fakeProvider{c: c}); err != nil {
			t.Fatalf("expected %+v to be accepted, got %v", c, err)
		}
	}
}

func TestCapturePreservesProviderErrorKind(t *testing.T) {
	p := &fakeProvider{err: failed(KindPermissionDenied, "user dismissed the prompt")}
	_, err := Capture(context.Background(), p)
	var le *Error
	if !errors.As(err, &le) {
		t.Fatalf("expected locate error, got %v", err)
	}
	if le.Kind != KindPermissionDenied {
		t.Fatalf("expected permission-denied, got %s", le.Kind)
	}
}

func TestCaptureWrapsForeignErrors(t *testing.T) {
	p := &fakeProvider{err: errors.New("sensor timeout")}
	_, err := Capture(context.Background(), p)
	var le *Error
	if !errors.As(err, &le) {
		t.Fatalf("expected locate error, got %v", err)
	}
	if le.Kind != KindCaptureFailed {
		t.Fatalf("expected capture-failed, got %s", le.Kind)
	}
}

func TestNativeProviderSettleOnlyOnce(t *testing.T) {
	n := NewNativeProvider("http://localhost:0", 1)
	if !n.firstFix() {
		t.Fatal("first fix should report true")
	}
	if n.firstFix() {
		t.Fatal("subsequent fixes should not settle again")
	}
}
