package etl

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cali-upid/internal/geometry"
)

// Properties returns the output property map for one result: pass-through
// properties, corrected lat/lon and one field per reference set.
func (o *Output) Properties(i int) map[string]interface{} {
	r := o.Results[i]
	props := r.Record.ToProperties(o.Batch.Fields)
	for field, v := range r.Annotations {
		props[field] = v
	}
	return props
}

// Encode renders the processed batch in the same shape it was read in
func (o *Output) Encode() ([]byte, error) {
	switch o.Batch.Format {
	case FormatFeatureCollection:
		fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, len(o.Results))}
		for i, r := range o.Results {
			g, err := geometry.Encode(r.Record.Geometry)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", r.Record.Index, err)
			}
			fc.Features[i] = feature{
				Type:       "Feature",
				ID:         o.featureID(i),
				Properties: o.Properties(i),
				Geometry:   g,
			}
		}
		return json.MarshalIndent(fc, "", "  ")

	default:
		rows := make([]map[string]interface{}, len(o.Results))
		for i, r := range o.Results {
			g, err := geometry.Encode(r.Record.Geometry)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", r.Record.Index, err)
			}
			row := o.Properties(i)
			row[geometryKey] = g
			rows[i] = row
		}
		return json.MarshalIndent(rows, "", "  ")
	}
}

func (o *Output) featureID(i int) interface{} {
	if i < len(o.Batch.featureIDs) {
		return o.Batch.featureIDs[i]
	}
	return nil
}

// WriteFile encodes the batch to path
func (o *Output) WriteFile(path string) error {
	data, err := o.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output %s: %w", path, err)
	}
	return nil
}

// WriteReport writes the quality report as JSON
func (o *Output) WriteReport(path string) error {
	data, err := json.MarshalIndent(o.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}
