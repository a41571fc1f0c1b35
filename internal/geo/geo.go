package geo

import (
	"math"

	"github.com/example/field-dispatch/internal/models"
)

// MilesPerKm converts kilometer distances for display.
const MilesPerKm = 0.621371

// Haversine returns the great-circle distance in kilometers between two
// points given in decimal degrees. Earth radius 6371 km.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

// DistanceKm is Haversine over model types.
func DistanceKm(from models.Location, to models.Coordinates) float64 {
	return Haversine(from.Latitude, from.Longitude, to.Latitude, to.Longitude)
}

// ToMiles converts kilometers to statute miles.
func ToMiles(km float64) float64 { return km * MilesPerKm }

// Valid reports whether a fix is usable: inside latitude/longitude
// bounds and not the (0,0) "no fix" sentinel some sensors emit.
func Valid(c models.Coordinates) bool {
	if c.Latitude == 0 && c.Longitude == 0 {
		return false
	}
	if math.Abs(c.Latitude) > 90 || math.Abs(c.Longitude) > 180 {
		return false
	}
	return true
}
