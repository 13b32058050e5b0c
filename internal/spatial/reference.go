package spatial

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/cali-upid/internal/normalize"
)

var (
	// ErrMalformedReference is returned for reference files that cannot be used
	ErrMalformedReference = errors.New("malformed reference polygon file")
	// ErrEmptyReference is returned when a reference file has no polygons
	ErrEmptyReference = errors.New("reference polygon file has no polygons")
)

// Entry is one labelled polygon of a reference set
type Entry struct {
	Label   string
	Polygon *geom.Polygon

	minX, minY, maxX, maxY float64
}

func newEntry(label string, p *geom.Polygon) (Entry, error) {
	if p == nil || p.NumLinearRings() == 0 || p.LinearRing(0).NumCoords() < 4 {
		return Entry{}, fmt.Errorf("%w: polygon %q needs a closed outer ring", ErrMalformedReference, label)
	}
	b := p.Bounds()
	return Entry{
		Label:   label,
		Polygon: p,
		minX:    b.Min(0),
		minY:    b.Min(1),
		maxX:    b.Max(0),
		maxY:    b.Max(1),
	}, nil
}

// ReferenceSet is an immutable, ordered collection of labelled polygons
// (comunas, barrios). It is loaded once per batch and shared read-only.
type ReferenceSet struct {
	Name       string
	LabelField string
	entries    []Entry
}

// NewReferenceSet builds a set from labelled polygons, keeping their order.
func NewReferenceSet(name string, labels []string, polygons []*geom.Polygon) (*ReferenceSet, error) {
	if len(labels) != len(polygons) {
		return nil, fmt.Errorf("%w: %d labels for %d polygons", ErrMalformedReference, len(labels), len(polygons))
	}
	rs := &ReferenceSet{Name: name}
	for i, p := range polygons {
		e, err := newEntry(normalize.CleanLabel(labels[i]), p)
		if err != nil {
			return nil, err
		}
		rs.entries = append(rs.entries, e)
	}
	if len(rs.entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyReference, name)
	}
	return rs, nil
}

// LoadReferenceSet reads a GeoJSON FeatureCollection of Polygon/MultiPolygon
// features labelled by labelField. Any unusable feature fails the whole load.
func LoadReferenceSet(name, path, labelField string) (*ReferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference file %s: %w", path, err)
	}
	rs, err := ParseReferenceSet(name, data, labelField)
	if err != nil {
		return nil, fmt.Errorf("reference file %s: %w", path, err)
	}
	return rs, nil
}

// ParseReferenceSet is LoadReferenceSet over in-memory GeoJSON.
func ParseReferenceSet(name string, data []byte, labelField string) (*ReferenceSet, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReference, err)
	}

	rs := &ReferenceSet{Name: name, LabelField: labelField}
	for i, f := range fc.Features {
		if f == nil {
			return nil, fmt.Errorf("%w: feature %d is null", ErrMalformedReference, i)
		}
		label, ok := labelOf(f.Properties, labelField)
		if !ok {
			return nil, fmt.Errorf("%w: feature %d has no %q property", ErrMalformedReference, i, labelField)
		}

		switch g := f.Geometry.(type) {
		case *geom.Polygon:
			e, err := newEntry(label, g)
			if err != nil {
				return nil, fmt.Errorf("feature %d: %w", i, err)
			}
			rs.entries = append(rs.entries, e)
		case *geom.MultiPolygon:
			for j := 0; j < g.NumPolygons(); j++ {
				e, err := newEntry(label, g.Polygon(j))
				if err != nil {
					return nil, fmt.Errorf("feature %d part %d: %w", i, j, err)
				}
				rs.entries = append(rs.entries, e)
			}
		default:
			return nil, fmt.Errorf("%w: feature %d (%s) has %T geometry, want Polygon or MultiPolygon",
				ErrMalformedReference, i, label, f.Geometry)
		}
	}

	if len(rs.entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyReference, name)
	}
	return rs, nil
}

func labelOf(props map[string]interface{}, field string) (string, bool) {
	var label string
	switch v := props[field].(type) {
	case string:
		label = v
	case float64:
		label = strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		label = v.String()
	default:
		return "", false
	}
	label = normalize.CleanLabel(label)
	return label, label != ""
}

// Len returns the number of polygons in the set
func (rs *ReferenceSet) Len() int {
	return len(rs.entries)
}

// Labels returns the distinct labels in file order
func (rs *ReferenceSet) Labels() []string {
	seen := make(map[string]bool, len(rs.entries))
	var labels []string
	for _, e := range rs.entries {
		if !seen[e.Label] {
			seen[e.Label] = true
			labels = append(labels, e.Label)
		}
	}
	return labels
}

// Entries returns a copy of the set's entries in order
func (rs *ReferenceSet) Entries() []Entry {
	out := make([]Entry, len(rs.entries))
	copy(out, rs.entries)
	return out
}
