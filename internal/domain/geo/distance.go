package geo

import "math"

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance between a and b in kilometers:
//
//	d = 2R·asin(√(sin²(Δφ/2) + cosφ1·cosφ2·sin²(Δλ/2)))
func Distance(a, b Coordinate) float64 {
	phi1 := degreesToRadians(a.Latitude)
	phi2 := degreesToRadians(b.Latitude)
	dPhi := degreesToRadians(b.Latitude - a.Latitude)
	dLambda := degreesToRadians(b.Longitude - a.Longitude)

	sinDPhi := math.Sin(dPhi / 2)
	sinDLambda := math.Sin(dLambda / 2)

	h := sinDPhi*sinDPhi + math.Cos(phi1)*math.Cos(phi2)*sinDLambda*sinDLambda
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
