package geofence

import "math"

// EarthRadiusMeters is the mean earth radius used for all distance math.
const EarthRadiusMeters = 6371000.0

// DistanceMeters returns the great-circle distance between the anchor and the point.
// Radius boundary decisions depend on this exact form of the formula.
func DistanceMeters(anchorLat, anchorLon, pointLat, pointLon float64) float64 {
	dLat := (pointLat - anchorLat) * math.Pi / 180
	dLon := (pointLon - anchorLon) * math.Pi / 180
	a := 0.5 - math.Cos(dLat)/2 +
		math.Cos(anchorLat*math.Pi/180)*math.Cos(pointLat*math.Pi/180)*
			(1-math.Cos(dLon))/2
	return EarthRadiusMeters * 2 * math.Asin(math.Sqrt(a))
}

// Anchor is the campus reference point and allowed radius.
type Anchor struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Distance returns how far the point is from the anchor, in meters.
func (a Anchor) Distance(lat, lon float64) float64 {
	return DistanceMeters(a.Latitude, a.Longitude, lat, lon)
}

// Contains reports whether the point lies within the allowed radius.
// NaN distances are never contained.
func (a Anchor) Contains(lat, lon float64) bool {
	return a.Distance(lat, lon) <= a.RadiusMeters
}
