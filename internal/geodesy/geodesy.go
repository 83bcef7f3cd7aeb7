// Package geodesy provides spherical-earth distance helpers.
package geodesy

import (
	"math"

	"github.com/skypies/geo"
)

// EarthRadiusKm is the mean earth radius used by all distance calculations.
const EarthRadiusKm = 6371.0

func radians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func degrees(rad float64) float64 {
	return rad * 180.0 / math.Pi
}

// GreatCircleDistanceKm returns the haversine distance in kilometers between
// two points given in decimal degrees.
func GreatCircleDistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(radians(lat1))*math.Cos(radians(lat2))*sinLon*sinLon

	// Rounding can push a just outside [0,1] for antipodal points.
	a = clamp(a, 0, 1)

	c := 2 * math.Asin(math.Sqrt(a))
	return EarthRadiusKm * c
}

// Distance is GreatCircleDistanceKm over two points.
func Distance(from, to geo.Latlong) float64 {
	return GreatCircleDistanceKm(from.Lat, from.Long, to.Lat, to.Long)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// BoundingBoxAround returns the box that circumscribes a circle of radiusKm
// around center. Latitudes are clamped to [-90, 90]; when the circle reaches a
// pole the box spans every longitude.
func BoundingBoxAround(center geo.Latlong, radiusKm float64) geo.LatlongBox {
	if radiusKm <= 0 {
		return geo.LatlongBox{SW: center, NE: center}
	}

	dLat := degrees(radiusKm / EarthRadiusKm)
	box := geo.LatlongBox{
		SW: geo.Latlong{Lat: clamp(center.Lat-dLat, -90, 90)},
		NE: geo.Latlong{Lat: clamp(center.Lat+dLat, -90, 90)},
	}

	cosLat := math.Cos(radians(center.Lat))
	if box.SW.Lat == -90 || box.NE.Lat == 90 || cosLat <= 0 {
		box.SW.Long, box.NE.Long = -180, 180
		return box
	}

	dLon := dLat / cosLat
	box.SW.Long = clamp(center.Long-dLon, -180, 180)
	box.NE.Long = clamp(center.Long+dLon, -180, 180)
	return box
}
