package normalize

import (
	"github.com/twpayne/go-geom"

	"github.com/sells-group/risk-alerts/internal/model"
)

// SRIDWGS84 is the spatial reference of every point this package returns.
const SRIDWGS84 = 4326

// Default reference point (Mexico City) used when a transaction has no
// usable coordinates.
const (
	DefaultLat = 19.4326
	DefaultLon = -99.1332
)

// NewPoint returns an XY point with X = lon, Y = lat.
func NewPoint(lat, lon float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(SRIDWGS84)
}

// ResolveCoordinates returns the transaction's coordinates when both sides are
// present and finite, otherwise fallback.
func ResolveCoordinates(tx model.RawTransaction, fallback *geom.Point) *geom.Point {
	if tx.Coordinates.Complete() {
		return NewPoint(*tx.Coordinates.Lat, *tx.Coordinates.Lng)
	}
	if fallback == nil {
		return NewPoint(DefaultLat, DefaultLon)
	}
	return fallback
}
