package geometry

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/twpayne/go-geom"

	"github.com/cali-upid/internal/coords"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind string
		wantErr  error
	}{
		{"point", `{"type":"Point","coordinates":[-76.5,3.4]}`, "Point", nil},
		{"linestring", `{"type":"LineString","coordinates":[[-76.5,3.4],[-76.4,3.5]]}`, "LineString", nil},
		{"multilinestring", `{"type":"MultiLineString","coordinates":[[[-76.5,3.4],[-76.4,3.5]],[[-76.3,3.4],[-76.2,3.4]]]}`, "MultiLineString", nil},
		{"polygon", `{"type":"Polygon","coordinates":[[[-76.5,3.4],[-76.4,3.4],[-76.4,3.5],[-76.5,3.4]]]}`, "Polygon", nil},
		{"null", `null`, "", nil},
		{"empty", ``, "", nil},
		{"elevation", `{"type":"Point","coordinates":[-76.5,3.4,1000]}`, "", ErrElevation},
		{"elevation in line", `{"type":"LineString","coordinates":[[-76.5,3.4,10],[-76.4,3.5,12]]}`, "", ErrElevation},
		{"multipoint unsupported", `{"type":"MultiPoint","coordinates":[[-76.5,3.4]]}`, "", ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Decode(json.RawMessage(tt.input))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if Kind(g) != tt.wantKind {
				t.Errorf("Kind = %q, want %q", Kind(g), tt.wantKind)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode(json.RawMessage(`{"type":"Point","coordinates":"x"}`)); err == nil {
		t.Error("expected error for malformed coordinates")
	}
}

func TestEncodeRoundTripPoint(t *testing.T) {
	p := NewPoint(coords.Coordinate{Lat: 3.4, Lon: -76.5})
	data, err := Encode(p)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	g, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		t.Fatalf("decoded %T, want *geom.Point", g)
	}
	if pt.X() != -76.5 || pt.Y() != 3.4 {
		t.Errorf("point = (%v, %v), want (-76.5, 3.4)", pt.X(), pt.Y())
	}

	null, err := Encode(nil)
	if err != nil || string(null) != "null" {
		t.Errorf("Encode(nil) = %s, %v", null, err)
	}
}

func TestCentroid(t *testing.T) {
	line := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{-76.6, 3.4}, {-76.4, 3.4}})
	square := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{-76.5, 3.4}, {-76.4, 3.4}, {-76.4, 3.5}, {-76.5, 3.5}, {-76.5, 3.4},
	}})

	tests := []struct {
		name string
		g    geom.T
		want coords.Coordinate
	}{
		{"point", NewPoint(coords.Coordinate{Lat: 3.45, Lon: -76.45}), coords.Coordinate{Lat: 3.45, Lon: -76.45}},
		{"line", line, coords.Coordinate{Lat: 3.4, Lon: -76.5}},
		{"square", square, coords.Coordinate{Lat: 3.45, Lon: -76.45}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Centroid(tt.g)
			if err != nil {
				t.Fatalf("Centroid() error: %v", err)
			}
			if math.Abs(got.Lat-tt.want.Lat) > 1e-9 || math.Abs(got.Lon-tt.want.Lon) > 1e-9 {
				t.Errorf("Centroid() = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := Centroid(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Centroid(nil) error = %v, want ErrEmpty", err)
	}
}

func TestIsLinear(t *testing.T) {
	line := geom.NewLineString(geom.XY)
	multi := geom.NewMultiLineString(geom.XY)
	if !IsLinear(line) || !IsLinear(multi) {
		t.Error("line geometries should be linear")
	}
	if IsLinear(NewPoint(coords.Coordinate{Lat: 3.4, Lon: -76.5})) || IsLinear(nil) {
		t.Error("point and nil should not be linear")
	}
}
