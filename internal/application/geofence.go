package application

import (
	"context"
	"math"
	"strconv"
	"strings"
)

const earthRadiusMeters = 6371000

// CoordinateGeofence verifies reported positions against sessions whose
// location is a "lat,lng" coordinate pair. Free-text locations carry no
// coordinates to measure against, so they pass unverified.
type CoordinateGeofence struct{}

// Inside reports whether the position lies within radiusMeters of the
// location's coordinates, measured along the great circle.
func (CoordinateGeofence) Inside(_ context.Context, locationSpec string, radiusMeters int, position Position) (bool, error) {
	center, ok := ParseCoordinates(locationSpec)
	if !ok {
		return true, nil
	}
	return distanceMeters(center, position) <= float64(radiusMeters), nil
}

// ParseCoordinates reads a "lat,lng" pair from a location string. Both
// components must be decimal degrees within the valid ranges.
func ParseCoordinates(spec string) (Position, bool) {
	before, after, found := strings.Cut(spec, ",")
	if !found {
		return Position{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(before), 64)
	if err != nil {
		return Position{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(after), 64)
	if err != nil {
		return Position{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Position{}, false
	}
	return Position{Latitude: lat, Longitude: lng}, true
}

// distanceMeters is the haversine great-circle distance between two
// positions.
func distanceMeters(a, b Position) float64 {
	latA := radians(a.Latitude)
	latB := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
