package record

import (
	"encoding/json"
	"fmt"
	"strconv"
)

func toString(v interface{}) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// Fields names the properties holding the flat coordinates
type Fields struct {
	Lat string
	Lon string
}

// DefaultFields are the property names used by the project unit datasets
func DefaultFields() Fields {
	return Fields{Lat: "lat", Lon: "lon"}
}

// FromProperties splits the coordinate fields out of props. The remaining
// properties are copied so the caller's map is left untouched.
func FromProperties(index int, props map[string]interface{}, fields Fields) Record {
	rec := Record{
		Index:      index,
		Properties: make(map[string]interface{}, len(props)),
	}
	for k, v := range props {
		switch k {
		case fields.Lat:
			rec.LatRaw = v
		case fields.Lon:
			rec.LonRaw = v
		default:
			rec.Properties[k] = v
		}
	}
	return rec
}

// ToProperties merges the corrected lat/lon back into a fresh property map.
// Missing coordinates are written as null, never as zero.
func (r Record) ToProperties(fields Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(r.Properties)+2)
	for k, v := range r.Properties {
		out[k] = v
	}
	out[fields.Lat] = optional(r.Lat)
	out[fields.Lon] = optional(r.Lon)
	return out
}

func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
