package eta

import (
	"math"
	"testing"
	"time"

	"github.com/example/field-dispatch/internal/models"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(time.Minute)
	a := models.Coordinates{Latitude: 30.2672, Longitude: -97.7431}
	b := models.Coordinates{Latitude: 30.2700, Longitude: -97.7400}

	if _, ok := c.Get(a, b); ok {
		t.Fatal("empty cache reported a hit")
	}
	c.Set(a, b, 123.4)
	v, ok := c.Get(a, b)
	if !ok || v != 123.4 {
		t.Fatalf("got (%v, %v), want (123.4, true)", v, ok)
	}
	// direction matters for routing
	if _, ok := c.Get(b, a); ok {
		t.Fatal("reverse direction should miss")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Nanosecond)
	a := models.Coordinates{Latitude: 1}
	b := models.Coordinates{Latitude: 2}
	c.Set(a, b, 9)
	time.Sleep(time.Millisecond)
	if _, ok := c.Get(a, b); ok {
		t.Fatal("expired entry reported a hit")
	}
}

func TestEstimateSeconds(t *testing.T) {
	same := models.Coordinates{Latitude: 30, Longitude: -97}
	if got := EstimateSeconds(same, same, 10); got != 0 {
		t.Fatalf("same point estimate = %v, want 0", got)
	}

	// one degree of latitude is ~111.19 km; at 10 m/s that is ~11119 s
	from := models.Coordinates{Latitude: 30, Longitude: -97}
	to := models.Coordinates{Latitude: 31, Longitude: -97}
	got := EstimateSeconds(from, to, 10)
	if math.Abs(got-11119) > 60 {
		t.Fatalf("estimate = %v, want ~11119", got)
	}

	// non-positive speed falls back to the default rather than dividing by zero
	if got := EstimateSeconds(from, to, 0); math.IsInf(got, 0) || math.IsNaN(got) {
		t.Fatalf("zero speed produced %v", got)
	}
}
