package record

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"

	"github.com/cali-upid/internal/geometry"
)

// DefaultPrecision is the number of decimals kept when lat/lon are derived
// from a geometry
const DefaultPrecision = 10

// MinPrecision is the coarsest rounding that still keeps derived lat/lon
// within Tolerance of the geometry
const MinPrecision = 7

// Tolerance below which a Point geometry and its lat/lon properties agree
const Tolerance = 1e-6

// Change records what Reconcile did to a record
type Change string

const (
	ChangePropertiesFromPoint Change = "properties_from_point"
	ChangeMismatchResolved    Change = "mismatch_resolved"
	ChangeCentroidDerived     Change = "centroid_derived"
	ChangeGeometrySynthesized Change = "geometry_synthesized"
	ChangeNoLocation          Change = "no_location"
)

// Reconcile makes the geometry and the lat/lon properties of rec mutually
// consistent and returns the updated copy. rec itself is not modified.
//
// A Point geometry takes precedence over disagreeing properties. Line and area
// geometries only feed a centroid into lat/lon; the geometry is kept as is.
// precision is raised to MinPrecision when coarser.
func Reconcile(rec Record, precision int) (Record, []Change) {
	switch {
	case precision <= 0:
		precision = DefaultPrecision
	case precision < MinPrecision:
		precision = MinPrecision
	}
	out := rec
	var changes []Change

	switch g := rec.Geometry.(type) {
	case *geom.Point:
		lat := round(g.Y(), precision)
		lon := round(g.X(), precision)
		switch {
		case rec.Lat == nil || rec.Lon == nil:
			changes = append(changes, ChangePropertiesFromPoint)
			out.Lat, out.Lon = &lat, &lon
		case math.Abs(*rec.Lat-g.Y()) >= Tolerance || math.Abs(*rec.Lon-g.X()) >= Tolerance:
			changes = append(changes, ChangeMismatchResolved)
			out.Lat, out.Lon = &lat, &lon
		}

	case nil:
		if c, ok := rec.Coordinate(); ok {
			out.Geometry = geometry.NewPoint(c)
			changes = append(changes, ChangeGeometrySynthesized)
		} else {
			changes = append(changes, ChangeNoLocation)
		}

	default:
		if rec.Lat == nil || rec.Lon == nil {
			c, err := geometry.Centroid(g)
			if err == nil {
				lat := round(c.Lat, precision)
				lon := round(c.Lon, precision)
				out.Lat, out.Lon = &lat, &lon
				changes = append(changes, ChangeCentroidDerived)
			}
		}
	}

	return out, changes
}

// Consistent checks the Point/properties invariant Reconcile establishes.
func Consistent(rec Record) error {
	p, ok := rec.Geometry.(*geom.Point)
	if !ok {
		return nil
	}
	if rec.Lat == nil || rec.Lon == nil {
		return fmt.Errorf("record %d: point geometry without lat/lon properties", rec.Index)
	}
	if math.Abs(*rec.Lat-p.Y()) >= Tolerance || math.Abs(*rec.Lon-p.X()) >= Tolerance {
		return fmt.Errorf("record %d: lat/lon (%.8f, %.8f) disagree with point (%.8f, %.8f)",
			rec.Index, *rec.Lat, *rec.Lon, p.Y(), p.X())
	}
	return nil
}

func round(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	r := math.Round(v*scale) / scale
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return v
	}
	return r
}
