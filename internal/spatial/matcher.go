package spatial

import (
	"github.com/twpayne/go-geom"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/record"
)

// Revisar is written in place of a label when a record needs manual review
const Revisar = "REVISAR"

// Status is the outcome class of a spatial match
type Status int

const (
	StatusMatched Status = iota
	StatusUnmatched
	StatusSkipped
	StatusRevisar
)

func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusUnmatched:
		return "unmatched"
	case StatusSkipped:
		return "skipped"
	case StatusRevisar:
		return "revisar"
	}
	return "unknown"
}

// MatchResult is the outcome of matching one record against one reference set
type MatchResult struct {
	Status Status `json:"status"`
	Label  string `json:"label,omitempty"`
}

// Value renders the result for the output field: the label when matched,
// REVISAR when unmatched or not locatable, "" when skipped.
func (m MatchResult) Value() string {
	switch m.Status {
	case StatusMatched:
		return m.Label
	case StatusSkipped:
		return ""
	}
	return Revisar
}

func matched(label string) MatchResult { return MatchResult{Status: StatusMatched, Label: label} }

// Locate returns the first polygon in file order containing c. Overlapping
// reference polygons resolve to whichever comes first.
func (rs *ReferenceSet) Locate(c coords.Coordinate) MatchResult {
	x, y := c.Lon, c.Lat
	for i := range rs.entries {
		e := &rs.entries[i]
		if x < e.minX || x > e.maxX || y < e.minY || y > e.maxY {
			continue
		}
		if polygonContains(e.Polygon, x, y) {
			return matched(e.Label)
		}
	}
	return MatchResult{Status: StatusUnmatched}
}

// Match tests a single point. A nil point, or one outside env, needs review.
func Match(pt *coords.Coordinate, rs *ReferenceSet, env coords.Envelope) MatchResult {
	if pt == nil || !env.Contains(*pt) {
		return MatchResult{Status: StatusRevisar}
	}
	return rs.Locate(*pt)
}

// Matcher binds a reference set to the envelope and an optional exclusion
// predicate for matching whole records.
type Matcher struct {
	Set      *ReferenceSet
	Envelope coords.Envelope
	Exclude  ExcludeFunc
}

// NewMatcher creates a matcher; exclude may be nil
func NewMatcher(set *ReferenceSet, env coords.Envelope, exclude ExcludeFunc) *Matcher {
	return &Matcher{Set: set, Envelope: env, Exclude: exclude}
}

// Match matches a reconciled record. Excluded records are skipped without
// looking at their geometry.
func (m *Matcher) Match(rec record.Record) MatchResult {
	return MatchRecord(rec, m.Set, m.Exclude, m.Envelope)
}

// MatchRecord is Matcher.Match without a Matcher value.
func MatchRecord(rec record.Record, rs *ReferenceSet, exclude ExcludeFunc, env coords.Envelope) MatchResult {
	if exclude != nil && exclude(rec) {
		return MatchResult{Status: StatusSkipped}
	}
	pt, ok := rec.Point()
	if !ok {
		return MatchResult{Status: StatusRevisar}
	}
	return Match(&pt, rs, env)
}

// polygonContains applies the even-odd rule to the outer ring and excludes
// points that fall inside any hole.
func polygonContains(p *geom.Polygon, x, y float64) bool {
	n := p.NumLinearRings()
	if n == 0 {
		return false
	}
	stride := p.Stride()
	if !ringContains(p.LinearRing(0).FlatCoords(), stride, x, y) {
		return false
	}
	for i := 1; i < n; i++ {
		if ringContains(p.LinearRing(i).FlatCoords(), stride, x, y) {
			return false
		}
	}
	return true
}

// ringContains casts a ray towards +x and counts edge crossings. Edges are
// treated as half-open in y, so a vertex is counted once and results are
// deterministic for points on the boundary.
func ringContains(flat []float64, stride int, x, y float64) bool {
	n := len(flat) / stride
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := flat[i*stride], flat[i*stride+1]
		xj, yj := flat[j*stride], flat[j*stride+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
