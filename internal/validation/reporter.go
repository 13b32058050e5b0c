package validation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cali-upid/internal/spatial"
)

// SourceStats breaks a report down for one source system
type SourceStats struct {
	Total      int              `json:"total"`
	WithIssues int              `json:"with_issues"`
	BySeverity map[Severity]int `json:"by_severity"`
	Revisar    int              `json:"revisar"`
}

// Report summarises a processed batch
type Report struct {
	GeneratedAt     time.Time `json:"generated_at"`
	Total           int       `json:"total"`
	WithLocation    int       `json:"with_location"`
	WithoutLocation int       `json:"without_location"`
	WithIssues      int       `json:"with_issues"`

	// reference set -> status -> count
	Matches map[string]map[string]int `json:"matches"`
	// reference set -> category -> status -> count
	MatchesByCategory map[string]map[string]map[string]int `json:"matches_by_category"`

	BySeverity map[Severity]int        `json:"by_severity"`
	ByIssue    map[IssueType]int       `json:"by_issue"`
	BySource   map[string]*SourceStats `json:"by_source"`
}

// Reporter accumulates outcomes into a Report. It is not safe for concurrent use.
type Reporter struct {
	report *Report
}

// NewReporter creates an empty reporter
func NewReporter() *Reporter {
	return &Reporter{report: &Report{
		Matches:           make(map[string]map[string]int),
		MatchesByCategory: make(map[string]map[string]map[string]int),
		BySeverity:        make(map[Severity]int),
		ByIssue:           make(map[IssueType]int),
		BySource:          make(map[string]*SourceStats),
	}}
}

const unknownKey = "(sin dato)"

// Add folds one outcome into the report
func (r *Reporter) Add(o Outcome) {
	rep := r.report
	rep.Total++
	if o.HasLocation {
		rep.WithLocation++
	} else {
		rep.WithoutLocation++
	}
	if len(o.Issues) > 0 {
		rep.WithIssues++
	}

	source := keyOr(o.Source)
	src := rep.BySource[source]
	if src == nil {
		src = &SourceStats{BySeverity: make(map[Severity]int)}
		rep.BySource[source] = src
	}
	src.Total++
	if len(o.Issues) > 0 {
		src.WithIssues++
	}

	for _, i := range o.Issues {
		rep.BySeverity[i.Severity]++
		rep.ByIssue[i.Type]++
		src.BySeverity[i.Severity]++
	}

	category := keyOr(o.Category)
	revisar := false
	for _, m := range o.Matches {
		status := m.Result.Status.String()
		if rep.Matches[m.Set] == nil {
			rep.Matches[m.Set] = make(map[string]int)
			rep.MatchesByCategory[m.Set] = make(map[string]map[string]int)
		}
		rep.Matches[m.Set][status]++
		if rep.MatchesByCategory[m.Set][category] == nil {
			rep.MatchesByCategory[m.Set][category] = make(map[string]int)
		}
		rep.MatchesByCategory[m.Set][category][status]++
		if m.Result.Value() == spatial.Revisar {
			revisar = true
		}
	}
	if revisar {
		src.Revisar++
	}
}

// AddAll folds outcomes in order
func (r *Reporter) AddAll(outcomes []Outcome) {
	for _, o := range outcomes {
		r.Add(o)
	}
}

// Report returns the accumulated report stamped with the current time
func (r *Reporter) Report() *Report {
	r.report.GeneratedAt = time.Now()
	return r.report
}

func keyOr(s string) string {
	if strings.TrimSpace(s) == "" {
		return unknownKey
	}
	return s
}

// Summary renders the report as a plain-text table
func (rep *Report) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Quality Report ===\n")
	fmt.Fprintf(&b, "Records:            %d\n", rep.Total)
	fmt.Fprintf(&b, "With location:      %d\n", rep.WithLocation)
	fmt.Fprintf(&b, "Without location:   %d\n", rep.WithoutLocation)
	fmt.Fprintf(&b, "Records w/ issues:  %d\n", rep.WithIssues)

	fmt.Fprintf(&b, "\n=== Issues by Severity ===\n")
	for _, s := range Severities {
		fmt.Fprintf(&b, "%-9s | %6d\n", s, rep.BySeverity[s])
	}

	if len(rep.ByIssue) > 0 {
		fmt.Fprintf(&b, "\n=== Issues by Type ===\n")
		for _, t := range sortedKeys(rep.ByIssue) {
			fmt.Fprintf(&b, "%-30s | %6d\n", t, rep.ByIssue[t])
		}
	}

	for _, set := range sortedKeys(rep.Matches) {
		counts := rep.Matches[set]
		fmt.Fprintf(&b, "\n=== Spatial Match: %s ===\n", set)
		fmt.Fprintf(&b, "Matched | Unmatched | Skipped | Revisar\n")
		fmt.Fprintf(&b, "%7d | %9d | %7d | %7d\n",
			counts["matched"], counts["unmatched"], counts["skipped"], counts["revisar"])
	}

	if len(rep.BySource) > 0 {
		fmt.Fprintf(&b, "\n=== By Source ===\n")
		fmt.Fprintf(&b, "%-30s | Total  | Issues | Critical | Revisar\n", "Source")
		for _, name := range sortedKeys(rep.BySource) {
			s := rep.BySource[name]
			fmt.Fprintf(&b, "%-30s | %6d | %6d | %8d | %7d\n",
				name, s.Total, s.WithIssues, s.BySeverity[SeverityCritical], s.Revisar)
		}
	}

	return b.String()
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
