package record

import (
	"github.com/twpayne/go-geom"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/geometry"
)

// Record is one project unit (unidad de proyecto) moving through the pipeline
type Record struct {
	// Index is the position of the record in its input batch
	Index int

	// Properties are passed through untouched, minus the lat/lon fields
	Properties map[string]interface{}

	// Raw lat/lon as received from the source
	LatRaw interface{}
	LonRaw interface{}

	// Corrected lat/lon, nil when absent or unrecoverable
	Lat *float64
	Lon *float64

	Geometry geom.T

	// GeometryErr is set when the source geometry could not be used
	GeometryErr error
}

// Coordinate returns the flat lat/lon properties when both are present
func (r Record) Coordinate() (coords.Coordinate, bool) {
	if r.Lat == nil || r.Lon == nil {
		return coords.Coordinate{}, false
	}
	return coords.Coordinate{Lat: *r.Lat, Lon: *r.Lon}, true
}

// Point returns the location used for spatial matching: the Point geometry
// when there is one, otherwise the flat lat/lon (a centroid for line and area
// geometries once reconciled).
func (r Record) Point() (coords.Coordinate, bool) {
	if p, ok := r.Geometry.(*geom.Point); ok && p != nil && !p.Empty() {
		return geometry.PointCoordinate(p), true
	}
	return r.Coordinate()
}

// HasLocation reports whether the record carries any usable location
func (r Record) HasLocation() bool {
	if r.Geometry != nil {
		return true
	}
	_, ok := r.Coordinate()
	return ok
}

// String returns a property value as a string, "" when absent
func (r Record) String(field string) string {
	if r.Properties == nil {
		return ""
	}
	switch v := r.Properties[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return toString(v)
	}
}
