package storage

import "math"

const earthRadiusM = 6371010.0

// Bounds is a lat/lon bounding box.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// BoundsAround computes a bounding box covering a radius (meters)
// around a point. Slightly generous near the poles, which is fine for
// city-scale queries.
func BoundsAround(lat, lon, radiusM float64) Bounds {
	dLat := radiusM / 111320.0
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.1 {
		cos = 0.1
	}
	dLon := radiusM / (111320.0 * cos)
	return Bounds{
		MinLat: lat - dLat,
		MaxLat: lat + dLat,
		MinLon: lon - dLon,
		MaxLon: lon + dLon,
	}
}

func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Distance returns meters between two points using the
// equirectangular approximation. Accurate enough at the distances a
// station proximity search cares about.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * (math.Pi / 180)
	lat2Rad := lat2 * (math.Pi / 180)
	x := (lon2 - lon1) * (math.Pi / 180) * math.Cos((lat1Rad+lat2Rad)/2)
	y := (lat2 - lat1) * (math.Pi / 180)
	return earthRadiusM * math.Sqrt(x*x+y*y)
}
