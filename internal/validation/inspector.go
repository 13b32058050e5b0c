package validation

import (
	"fmt"
	"strings"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/record"
	"github.com/cali-upid/internal/spatial"
)

// Observation collects the outputs of the earlier stages for one record
type Observation struct {
	Correction coords.Correction

	// Repair applied to a Point geometry's own coordinates
	GeometryLatRepair coords.Repair
	GeometryLonRepair coords.Repair

	// Repair applied to lat/lon derived from a line or area centroid
	CentroidLatRepair coords.Repair
	CentroidLonRepair coords.Repair

	GeometryErr error
	Changes     []record.Change
	Record      record.Record
	Matches     []SetMatch
}

// Inspector turns observations into issues
type Inspector struct {
	Strict         coords.Envelope
	OptionalFields []string
}

// NewInspector creates an inspector checking against the strict envelope
func NewInspector(optional []string) *Inspector {
	return &Inspector{Strict: coords.StrictEnvelope(), OptionalFields: optional}
}

// Inspect lists the issues for one observation
func (in *Inspector) Inspect(obs Observation) []Issue {
	var issues []Issue
	add := func(t IssueType, s Severity, field, format string, args ...interface{}) {
		issues = append(issues, Issue{Type: t, Severity: s, Field: field, Detail: fmt.Sprintf(format, args...)})
	}

	c := obs.Correction
	issues = append(issues, repairIssues("lat", c.LatRepair, c.LatParsed)...)
	issues = append(issues, repairIssues("lon", c.LonRepair, c.LonParsed)...)
	issues = append(issues, repairIssues("geometry.lat", obs.GeometryLatRepair, nil)...)
	issues = append(issues, repairIssues("geometry.lon", obs.GeometryLonRepair, nil)...)
	issues = append(issues, repairIssues("centroid.lat", obs.CentroidLatRepair, nil)...)
	issues = append(issues, repairIssues("centroid.lon", obs.CentroidLonRepair, nil)...)

	if obs.GeometryErr != nil {
		add(IssueInvalidGeometry, SeverityHigh, "geometry", "%v", obs.GeometryErr)
	}

	for _, ch := range obs.Changes {
		switch ch {
		case record.ChangeMismatchResolved:
			add(IssueMismatch, SeverityMedium, "geometry", "lat/lon properties replaced by point geometry")
		case record.ChangeGeometrySynthesized:
			add(IssueGeometrySynth, SeverityLow, "geometry", "point geometry built from lat/lon")
		case record.ChangePropertiesFromPoint:
			add(IssuePropertiesDerived, SeverityLow, "lat/lon", "lat/lon taken from point geometry")
		case record.ChangeCentroidDerived:
			add(IssueCentroidDerived, SeverityLow, "lat/lon", "lat/lon taken from geometry centroid")
		case record.ChangeNoLocation:
			add(IssueNoLocation, SeverityHigh, "", "record has neither geometry nor valid lat/lon")
		}
	}

	if pt, ok := obs.Record.Point(); ok && !in.Strict.Contains(pt) {
		add(IssueOutsideCanonical, SeverityMedium, "lat/lon", "%s outside canonical municipal range", pt)
	}

	for _, f := range in.OptionalFields {
		if obs.Record.String(f) == "" {
			add(IssueMissingOptional, SeverityMedium, f, "optional field is empty")
		}
	}

	for _, m := range obs.Matches {
		switch m.Result.Status {
		case spatial.StatusUnmatched:
			add(UnmatchedIssue(m.Set), SeverityMedium, m.Set, "point outside every %s polygon", m.Set)
		case spatial.StatusRevisar:
			add(RevisarIssue(m.Set), SeverityMedium, m.Set, "no usable point to match against %s", m.Set)
		}
	}

	return issues
}

func repairIssues(field string, r coords.Repair, parsed *float64) []Issue {
	issue := func(t IssueType, s Severity, detail string) []Issue {
		return []Issue{{Type: t, Severity: s, Field: field, Detail: detail}}
	}
	switch r {
	case coords.RepairSignInverted:
		return issue(IssueInvertedLongitude, SeverityCritical, "positive longitude negated")
	case coords.RepairTruncatedDigit:
		return issue(IssueTruncatedLongitude, SeverityHigh, "missing leading digit restored")
	case coords.RepairDMS, coords.RepairDMSMinutes:
		return issue(IssueDMSConverted, SeverityHigh, "degrees/minutes without separators converted")
	case coords.RepairRejected, coords.RepairUnparseable:
		detail := "value outside the municipal envelope"
		switch {
		case r == coords.RepairUnparseable:
			detail = "value is not a number"
		case parsed != nil:
			detail = fmt.Sprintf("value %v outside the municipal envelope", *parsed)
		}
		if strings.HasSuffix(field, "lat") {
			return issue(IssueInvalidLatitude, SeverityCritical, detail)
		}
		return issue(IssueInvalidLongitude, SeverityCritical, detail)
	}
	return nil
}
