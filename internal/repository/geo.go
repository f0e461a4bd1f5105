package repository

import "math"

const (
	earthRadiusKm = 6371.0
	kmPerDegree   = 111.0
)

// HaversineKm returns the great-circle distance between two points in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// boundingBox is a lat/lng rectangle enclosing a circle of radiusKm.
type boundingBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func newBoundingBox(lat, lng, radiusKm float64) boundingBox {
	latDelta := radiusKm / kmPerDegree
	cosLat := math.Cos(lat * math.Pi / 180)
	// Near the poles every longitude is within reach.
	lngDelta := 180.0
	if cosLat > 0.01 {
		lngDelta = math.Min(180, radiusKm/(kmPerDegree*cosLat))
	}
	return boundingBox{
		MinLat: math.Max(-90, lat-latDelta),
		MaxLat: math.Min(90, lat+latDelta),
		MinLng: lng - lngDelta,
		MaxLng: lng + lngDelta,
	}
}

// ValidCoordinates reports whether lat/lng are on the globe.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
