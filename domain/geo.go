package domain

import "math"

const earthRadiusKm = 6371.0

// Coordinates is a [latitude, longitude] pair, matching the map widgets' wire shape.
type Coordinates [2]float64

func (c Coordinates) Lat() float64 { return c[0] }
func (c Coordinates) Lng() float64 { return c[1] }

// Valid reports whether the pair lies within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c[0] >= -90 && c[0] <= 90 && c[1] >= -180 && c[1] <= 180
}

// Location is an address with optional coordinates.
type Location struct {
	Address     string       `json:"address"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// HasCoordinates reports whether the location can take part in distance calculations.
func (l Location) HasCoordinates() bool {
	return l.Coordinates != nil
}

// DistanceKm returns the great-circle distance between two points using the haversine formula.
func DistanceKm(a, b Coordinates) float64 {
	lat1 := a.Lat() * math.Pi / 180
	lat2 := b.Lat() * math.Pi / 180
	dlat := lat2 - lat1
	dlng := (b.Lng() - a.Lng()) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// EstimateMinutes converts a distance to a travel time at the given average speed.
func EstimateMinutes(distanceKm, speedKmh float64) int {
	if speedKmh <= 0 {
		speedKmh = 30
	}
	return int(math.Ceil(distanceKm / speedKmh * 60))
}
