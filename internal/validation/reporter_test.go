package validation

import (
	"strings"
	"testing"

	"github.com/cali-upid/internal/spatial"
)

func TestReporterAggregates(t *testing.T) {
	r := NewReporter()
	matched := spatial.MatchResult{Status: spatial.StatusMatched, Label: "COMUNA 3"}
	revisar := spatial.MatchResult{Status: spatial.StatusRevisar}
	skipped := spatial.MatchResult{Status: spatial.StatusSkipped}

	r.AddAll([]Outcome{
		{
			Source: "SECOP", Category: "Parques", HasLocation: true,
			Matches: []SetMatch{{Set: "comunas", Result: matched}, {Set: "barrios", Result: skipped}},
		},
		{
			Source: "SECOP", Category: "Vías", HasLocation: true,
			Issues:  []Issue{{Type: IssueInvertedLongitude, Severity: SeverityCritical}},
			Matches: []SetMatch{{Set: "comunas", Result: matched}, {Set: "barrios", Result: skipped}},
		},
		{
			Source: "", Category: "Parques", HasLocation: false,
			Issues: []Issue{
				{Type: IssueNoLocation, Severity: SeverityHigh},
				{Type: IssueMissingOptional, Severity: SeverityMedium},
			},
			Matches: []SetMatch{{Set: "comunas", Result: revisar}, {Set: "barrios", Result: revisar}},
		},
	})
	rep := r.Report()

	if rep.Total != 3 || rep.WithLocation != 2 || rep.WithoutLocation != 1 || rep.WithIssues != 2 {
		t.Errorf("totals = %d/%d/%d/%d", rep.Total, rep.WithLocation, rep.WithoutLocation, rep.WithIssues)
	}
	if rep.Matches["comunas"]["matched"] != 2 || rep.Matches["comunas"]["revisar"] != 1 {
		t.Errorf("comunas matches = %v", rep.Matches["comunas"])
	}
	if rep.Matches["barrios"]["skipped"] != 2 {
		t.Errorf("barrios matches = %v", rep.Matches["barrios"])
	}
	if rep.MatchesByCategory["comunas"]["Parques"]["matched"] != 1 ||
		rep.MatchesByCategory["comunas"]["Parques"]["revisar"] != 1 {
		t.Errorf("comunas by category = %v", rep.MatchesByCategory["comunas"])
	}
	if rep.BySeverity[SeverityCritical] != 1 || rep.BySeverity[SeverityHigh] != 1 || rep.BySeverity[SeverityMedium] != 1 {
		t.Errorf("by severity = %v", rep.BySeverity)
	}
	if rep.ByIssue[IssueNoLocation] != 1 {
		t.Errorf("by issue = %v", rep.ByIssue)
	}

	secop := rep.BySource["SECOP"]
	if secop == nil || secop.Total != 2 || secop.WithIssues != 1 || secop.BySeverity[SeverityCritical] != 1 || secop.Revisar != 0 {
		t.Errorf("SECOP stats = %+v", secop)
	}
	unknown := rep.BySource[unknownKey]
	if unknown == nil || unknown.Revisar != 1 {
		t.Errorf("unknown source stats = %+v", unknown)
	}

	summary := rep.Summary()
	for _, want := range []string{"Quality Report", "CRITICAL", "Spatial Match: comunas", "SECOP"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	t.Log(summary)
}

func TestOutcomeWorst(t *testing.T) {
	o := Outcome{Issues: []Issue{
		{Type: IssueGeometrySynth, Severity: SeverityLow},
		{Type: IssueInvalidGeometry, Severity: SeverityHigh},
	}}
	if s, ok := o.Worst(); !ok || s != SeverityHigh {
		t.Errorf("Worst() = %q, %v, want HIGH", s, ok)
	}
	if _, ok := (Outcome{}).Worst(); ok {
		t.Error("Worst() on clean outcome should report false")
	}
}
