package etl

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cali-upid/internal/config"
	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/debug"
	"github.com/cali-upid/internal/spatial"
)

// Reference is a loaded polygon set together with where its labels go
type Reference struct {
	Name        string
	OutputField string
	Matcher     *spatial.Matcher

	// Overlapping polygon pairs, found once at load time
	Overlaps []spatial.Overlap
}

// Set returns the underlying reference set
func (r Reference) Set() *spatial.ReferenceSet {
	return r.Matcher.Set
}

// NewReference wraps a parsed set with its exclusion rules
func NewReference(rc config.ReferenceConfig, rs *spatial.ReferenceSet, env coords.Envelope) Reference {
	var linear spatial.ExcludeFunc
	if rc.ExcludeLinear {
		linear = spatial.ExcludeLinear
	}
	var byField spatial.ExcludeFunc
	if rc.ExcludeField != "" {
		byField = spatial.ExcludeByField(rc.ExcludeField, rc.ExcludeValues...)
	}
	return Reference{
		Name:        rc.Name,
		OutputField: rc.Output(),
		Matcher:     spatial.NewMatcher(rs, env, spatial.AnyOf(linear, byField)),
		Overlaps:    rs.Overlaps(),
	}
}

// LoadReferences reads every configured reference file concurrently. Any
// unreadable or malformed file fails the whole load.
func LoadReferences(ctx context.Context, localDebug bool, refs []config.ReferenceConfig, env coords.Envelope) ([]Reference, error) {
	defer debug.DebugTiming(localDebug, "load reference sets")()

	out := make([]Reference, len(refs))
	g, _ := errgroup.WithContext(ctx)
	for i, rc := range refs {
		i, rc := i, rc
		g.Go(func() error {
			rs, err := spatial.LoadReferenceSet(rc.Name, rc.File, rc.LabelField)
			if err != nil {
				return fmt.Errorf("reference %s: %w", rc.Name, err)
			}
			out[i] = NewReference(rc, rs, env)

			debug.DebugOutput(localDebug, "Loaded %s: %d polygons, %d labels from %s",
				rc.Name, rs.Len(), len(rs.Labels()), rc.File)
			if n := len(out[i].Overlaps); n > 0 {
				debug.DebugOutput(localDebug, "Warning: %s has %d overlapping polygon pairs, first match wins",
					rc.Name, n)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
