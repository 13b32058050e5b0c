package spatial

import (
	"github.com/cali-upid/internal/geometry"
	"github.com/cali-upid/internal/normalize"
	"github.com/cali-upid/internal/record"
)

// ExcludeFunc decides that a record should not be matched against a set
type ExcludeFunc func(rec record.Record) bool

// ExcludeLinear skips line features such as road works, whose representative
// point says little about the neighbourhood they cross.
func ExcludeLinear(rec record.Record) bool {
	return geometry.IsLinear(rec.Geometry)
}

// ExcludeByField skips records whose field equals one of values, ignoring
// case and accents.
func ExcludeByField(field string, values ...string) ExcludeFunc {
	keys := make(map[string]bool, len(values))
	for _, v := range values {
		keys[normalize.Fold(v)] = true
	}
	return func(rec record.Record) bool {
		v := rec.String(field)
		if v == "" {
			return false
		}
		return keys[normalize.Fold(v)]
	}
}

// AnyOf combines predicates; nil entries are ignored and an empty
// combination returns nil.
func AnyOf(preds ...ExcludeFunc) ExcludeFunc {
	var active []ExcludeFunc
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(rec record.Record) bool {
		for _, p := range active {
			if p(rec) {
				return true
			}
		}
		return false
	}
}
