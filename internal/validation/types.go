package validation

import (
	"fmt"
	"strings"

	"github.com/cali-upid/internal/spatial"
)

// Severity ranks how urgently an issue needs review
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every severity from most to least urgent
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// IssueType identifies a data-quality anomaly
type IssueType string

const (
	IssueInvertedLongitude  IssueType = "INVERTED_LONGITUDE"
	IssueInvalidLatitude    IssueType = "INVALID_LATITUDE"
	IssueInvalidLongitude   IssueType = "INVALID_LONGITUDE"
	IssueInvalidGeometry    IssueType = "INVALID_GEOMETRY"
	IssueTruncatedLongitude IssueType = "TRUNCATED_LONGITUDE"
	IssueDMSConverted       IssueType = "DMS_CONVERTED"
	IssueNoLocation         IssueType = "NO_LOCATION"
	IssueMismatch           IssueType = "GEOMETRY_PROPERTY_MISMATCH"
	IssueOutsideCanonical   IssueType = "OUTSIDE_CANONICAL_RANGE"
	IssueMissingOptional    IssueType = "MISSING_OPTIONAL_FIELD"
	IssueGeometrySynth      IssueType = "GEOMETRY_SYNTHESIZED"
	IssuePropertiesDerived  IssueType = "PROPERTIES_DERIVED"
	IssueCentroidDerived    IssueType = "CENTROID_DERIVED"
)

// UnmatchedIssue is raised when a located record falls outside every
// polygon of a reference set.
func UnmatchedIssue(set string) IssueType {
	return IssueType("UNMATCHED_" + strings.ToUpper(set))
}

// RevisarIssue is raised when a record could not be located for a set.
func RevisarIssue(set string) IssueType {
	return IssueType("REVISAR_" + strings.ToUpper(set))
}

// Issue is one anomaly found on one record
type Issue struct {
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`
	Field    string    `json:"field,omitempty"`
	Detail   string    `json:"detail,omitempty"`
}

func (i Issue) String() string {
	if i.Field != "" {
		return fmt.Sprintf("[%s] %s (%s): %s", i.Severity, i.Type, i.Field, i.Detail)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Type, i.Detail)
}

// SetMatch is a match result labelled with the reference set it came from
type SetMatch struct {
	Set    string              `json:"set"`
	Result spatial.MatchResult `json:"result"`
}

// Outcome is everything the reporter needs to know about one processed record
type Outcome struct {
	Index       int        `json:"index"`
	ID          string     `json:"id,omitempty"`
	Source      string     `json:"source,omitempty"`
	Category    string     `json:"category,omitempty"`
	HasLocation bool       `json:"has_location"`
	Issues      []Issue    `json:"issues,omitempty"`
	Matches     []SetMatch `json:"matches,omitempty"`
}

// Worst returns the most urgent severity among the outcome's issues
func (o Outcome) Worst() (Severity, bool) {
	for _, s := range Severities {
		for _, i := range o.Issues {
			if i.Severity == s {
				return s, true
			}
		}
	}
	return "", false
}
