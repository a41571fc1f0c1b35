package geo

import (
	"math"
	"testing"

	"github.com/example/field-dispatch/internal/models"
)

func TestHaversineSamePoint(t *testing.T) {
	if d := Haversine(30.2672, -97.7431, 30.2672, -97.7431); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	ab := Haversine(30.2672, -97.7431, 29.7604, -95.3698)
	ba := Haversine(29.7604, -95.3698, 30.2672, -97.7431)
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("asymmetric: %f vs %f", ab, ba)
	}
}

func TestHaversineDegreeOfLatitude(t *testing.T) {
	// one degree of latitude near the equator is ~111 km
	d := Haversine(0, 10, 1, 10)
	if math.Abs(d-111.19) > 1.5 {
		t.Fatalf("expected ~111 km, got %f", d)
	}
}

func TestHaversineAustinScenario(t *testing.T) {
	// downtown Austin to a fix a few blocks away
	d := Haversine(30.2672, -97.7431, 30.2700, -97.7400)
	if math.Abs(d-0.431) > 0.005 {
		t.Fatalf("expected ~0.431 km, got %f", d)
	}
	mi := ToMiles(d)
	if math.Abs(mi-0.268) > 0.005 {
		t.Fatalf("expected ~0.268 mi, got %f", mi)
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{30.2672, -97.7431, true},
		{90, 180, true},
		{-90, -180, true},
		{0, 0, false},
		{91, 10, false},
		{-91, 10, false},
		{10, 181, false},
		{10, -181, false},
		{0, 10, true},
		{10, 0, true},
	}
	for _, c := range cases {
		got := Valid(models.Coordinates{Latitude: c.lat, Longitude: c.lon})
		if got != c.want {
			t.Fatalf("Valid(%f,%f) = %v, want %v", c.lat, c.lon, got, c.want)
		}
	}
}
