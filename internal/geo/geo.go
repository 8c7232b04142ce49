package geo

import "math"

// earthRadiusMeters is the mean Earth radius used by the portal.
const earthRadiusMeters = 6371000

// DistanceMeters returns the great-circle distance between two coordinates
// using the Haversine formula. NaN inputs propagate as NaN; callers validate
// upstream.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	latFrom := lat1 * math.Pi / 180
	lonFrom := lon1 * math.Pi / 180
	latTo := lat2 * math.Pi / 180
	lonTo := lon2 * math.Pi / 180

	latDelta := latTo - latFrom
	lonDelta := lonTo - lonFrom

	angle := 2 * math.Asin(math.Sqrt(
		math.Pow(math.Sin(latDelta/2), 2)+
			math.Cos(latFrom)*math.Cos(latTo)*math.Pow(math.Sin(lonDelta/2), 2)))
	return angle * earthRadiusMeters
}
