// Package geometry wraps go-geom for the geometry shapes carried by project
// records: Point, LineString, MultiLineString, Polygon and MultiPolygon, always
// in 2D [lon, lat] order.
package geometry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"

	"github.com/cali-upid/internal/coords"
)

var (
	ErrElevation   = errors.New("geometry carries elevation, only 2D coordinates are accepted")
	ErrUnsupported = errors.New("unsupported geometry type")
	ErrEmpty       = errors.New("geometry has no coordinates")
)

// Kind names the geometry the way GeoJSON does, "" for no geometry
func Kind(g geom.T) string {
	switch g.(type) {
	case *geom.Point:
		return "Point"
	case *geom.LineString:
		return "LineString"
	case *geom.MultiLineString:
		return "MultiLineString"
	case *geom.Polygon:
		return "Polygon"
	case *geom.MultiPolygon:
		return "MultiPolygon"
	case nil:
		return ""
	}
	return fmt.Sprintf("%T", g)
}

// IsLinear reports whether g is a line feature (roads, pipes, channels)
func IsLinear(g geom.T) bool {
	switch g.(type) {
	case *geom.LineString, *geom.MultiLineString:
		return true
	}
	return false
}

// Validate checks g is a supported, non-empty 2D geometry.
func Validate(g geom.T) error {
	switch g.(type) {
	case *geom.Point, *geom.LineString, *geom.MultiLineString, *geom.Polygon, *geom.MultiPolygon:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, Kind(g))
	}
	if g.Layout() != geom.XY {
		return ErrElevation
	}
	if g.Empty() {
		return ErrEmpty
	}
	return nil
}

// Decode parses a GeoJSON geometry object. A missing or null geometry decodes
// to nil without error.
func Decode(raw json.RawMessage) (geom.T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		return nil, fmt.Errorf("failed to decode geometry: %w", err)
	}
	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Encode renders g as a GeoJSON geometry object; nil renders as null.
func Encode(g geom.T) (json.RawMessage, error) {
	if g == nil {
		return json.RawMessage("null"), nil
	}
	data, err := geojson.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s geometry: %w", Kind(g), err)
	}
	return data, nil
}

// NewPoint builds a 2D point from a coordinate
func NewPoint(c coords.Coordinate) *geom.Point {
	return geom.NewPoint(geom.XY).MustSetCoords(geom.Coord{c.Lon, c.Lat})
}

// PointCoordinate returns the point as a lat/lon coordinate
func PointCoordinate(p *geom.Point) coords.Coordinate {
	return coords.Coordinate{Lat: p.Y(), Lon: p.X()}
}

// Centroid returns a representative point for any supported geometry. It is
// used for summaries only and never replaces the geometry itself.
func Centroid(g geom.T) (coords.Coordinate, error) {
	if g == nil {
		return coords.Coordinate{}, ErrEmpty
	}
	if p, ok := g.(*geom.Point); ok {
		return PointCoordinate(p), nil
	}
	c, err := xy.Centroid(g)
	if err != nil {
		return coords.Coordinate{}, fmt.Errorf("failed to compute %s centroid: %w", Kind(g), err)
	}
	if len(c) < 2 || math.IsNaN(c.X()) || math.IsNaN(c.Y()) {
		return coords.Coordinate{}, ErrEmpty
	}
	return coords.Coordinate{Lat: c.Y(), Lon: c.X()}, nil
}
