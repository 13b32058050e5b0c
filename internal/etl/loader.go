package etl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/twpayne/go-geom"

	"github.com/cali-upid/internal/geometry"
	"github.com/cali-upid/internal/record"
)

// ErrEmptyInput is returned when an input batch holds no records
var ErrEmptyInput = errors.New("input contains no records")

// Format is the shape of an input batch; output mirrors it
type Format int

const (
	FormatArray Format = iota
	FormatFeatureCollection
)

func (f Format) String() string {
	if f == FormatFeatureCollection {
		return "FeatureCollection"
	}
	return "array"
}

// geometryKey holds an inline GeoJSON geometry on flat array records
const geometryKey = "geometry"

// Batch is a decoded input file
type Batch struct {
	Format  Format
	Fields  record.Fields
	Records []record.Record

	// feature ids by record index, FeatureCollection only
	featureIDs []interface{}
}

type feature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// LoadFile reads and decodes an input batch from disk
func LoadFile(path string, fields record.Fields) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input %s: %w", path, err)
	}
	batch, err := Decode(data, fields)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return batch, nil
}

// Decode parses a JSON array of flat records or a GeoJSON FeatureCollection.
// Numbers are kept as json.Number so source values survive untouched until
// the normalizer sees them. A geometry that cannot be used is recorded on the
// record and never fails the batch.
func Decode(data []byte, fields record.Fields) (*Batch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmptyInput
	}

	var batch *Batch
	var err error
	switch trimmed[0] {
	case '[':
		batch, err = decodeArray(trimmed, fields)
	case '{':
		batch, err = decodeFeatureCollection(trimmed, fields)
	default:
		return nil, fmt.Errorf("input must be a JSON array or a FeatureCollection")
	}
	if err != nil {
		return nil, err
	}
	if len(batch.Records) == 0 {
		return nil, ErrEmptyInput
	}
	return batch, nil
}

func decodeJSON(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

func decodeArray(data []byte, fields record.Fields) (*Batch, error) {
	var rows []map[string]interface{}
	if err := decodeJSON(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse record array: %w", err)
	}

	batch := &Batch{Format: FormatArray, Fields: fields, Records: make([]record.Record, 0, len(rows))}
	for i, row := range rows {
		rec := record.FromProperties(i, row, fields)
		if raw, ok := rec.Properties[geometryKey]; ok {
			delete(rec.Properties, geometryKey)
			rec.Geometry, rec.GeometryErr = inlineGeometry(raw)
		}
		batch.Records = append(batch.Records, rec)
	}
	return batch, nil
}

// inlineGeometry accepts a GeoJSON object or a string holding one
func inlineGeometry(raw interface{}) (geom.T, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return geometry.Decode(json.RawMessage(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode geometry: %w", err)
		}
		return geometry.Decode(data)
	}
}

func decodeFeatureCollection(data []byte, fields record.Fields) (*Batch, error) {
	var fc featureCollection
	if err := decodeJSON(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse FeatureCollection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("unsupported GeoJSON type %q, want FeatureCollection", fc.Type)
	}

	batch := &Batch{
		Format:     FormatFeatureCollection,
		Fields:     fields,
		Records:    make([]record.Record, 0, len(fc.Features)),
		featureIDs: make([]interface{}, 0, len(fc.Features)),
	}
	for i, f := range fc.Features {
		rec := record.FromProperties(i, f.Properties, fields)
		rec.Geometry, rec.GeometryErr = geometry.Decode(f.Geometry)
		batch.Records = append(batch.Records, rec)
		batch.featureIDs = append(batch.featureIDs, f.ID)
	}
	return batch, nil
}
