package etl

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/debug"
	"github.com/cali-upid/internal/geometry"
	"github.com/cali-upid/internal/metrics"
	"github.com/cali-upid/internal/record"
	"github.com/cali-upid/internal/spatial"
	"github.com/cali-upid/internal/validation"
)

// Options tune a pipeline run
type Options struct {
	Workers       int
	Precision     int
	ProgressEvery int

	IDField        string
	SourceField    string
	CategoryField  string
	OptionalFields []string
}

// Pipeline runs project-unit records through correction, reconciliation,
// spatial matching and inspection
type Pipeline struct {
	corrector  *coords.Corrector
	inspector  *validation.Inspector
	references []Reference
	opts       Options
}

// NewPipeline creates a pipeline. References are shared read-only by all workers.
func NewPipeline(env coords.Envelope, refs []Reference, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Precision <= 0 {
		opts.Precision = record.DefaultPrecision
	}
	return &Pipeline{
		corrector:  coords.NewCorrector(env),
		inspector:  validation.NewInspector(opts.OptionalFields),
		references: refs,
		opts:       opts,
	}
}

// References lists the loaded reference sets in match order
func (p *Pipeline) References() []Reference {
	return p.references
}

// Corrector exposes the coordinate corrector used by the pipeline
func (p *Pipeline) Corrector() *coords.Corrector {
	return p.corrector
}

// Result is one processed record
type Result struct {
	Record  record.Record
	Outcome validation.Outcome

	// Annotations maps each reference output field to its label, "REVISAR",
	// or nil when the set was skipped
	Annotations map[string]interface{}
}

// ProcessRecord runs a single record through every stage. It never fails;
// anomalies end up as issues on the outcome.
func (p *Pipeline) ProcessRecord(rec record.Record) Result {
	obs := validation.Observation{GeometryErr: rec.GeometryErr}

	obs.Correction = p.corrector.Correct(rec.LatRaw, rec.LonRaw)
	rec.Lat, rec.Lon = obs.Correction.Lat, obs.Correction.Lon
	countRepair("lat", obs.Correction.LatRepair)
	countRepair("lon", obs.Correction.LonRepair)

	if pt, ok := rec.Geometry.(*geom.Point); ok {
		fixed, corr, ok := p.corrector.CorrectCoordinate(geometry.PointCoordinate(pt))
		obs.GeometryLatRepair, obs.GeometryLonRepair = corr.LatRepair, corr.LonRepair
		switch {
		case !ok:
			// Unrecoverable point; fall back to whatever lat/lon survived
			rec.Geometry = nil
		case corr.LatRepair.Repaired() || corr.LonRepair.Repaired():
			rec.Geometry = geometry.NewPoint(fixed)
		}
		countRepair("geometry.lat", corr.LatRepair)
		countRepair("geometry.lon", corr.LonRepair)
	}

	rec, obs.Changes = record.Reconcile(rec, p.opts.Precision)
	if derivedFromCentroid(obs.Changes) {
		// Centroids come from raw geometry coordinates and get the same repairs
		corr := p.corrector.Correct(*rec.Lat, *rec.Lon)
		rec.Lat, rec.Lon = corr.Lat, corr.Lon
		obs.CentroidLatRepair, obs.CentroidLonRepair = corr.LatRepair, corr.LonRepair
		countRepair("centroid.lat", corr.LatRepair)
		countRepair("centroid.lon", corr.LonRepair)
	}

	ann := make(map[string]interface{}, len(p.references))
	for _, ref := range p.references {
		res := ref.Matcher.Match(rec)
		obs.Matches = append(obs.Matches, validation.SetMatch{Set: ref.Name, Result: res})
		if res.Status == spatial.StatusSkipped {
			ann[ref.OutputField] = nil
		} else {
			ann[ref.OutputField] = res.Value()
		}
		metrics.MatchOutcomes.WithLabelValues(ref.Name, res.Status.String()).Inc()
	}

	obs.Record = rec
	issues := p.inspector.Inspect(obs)
	for _, i := range issues {
		metrics.Issues.WithLabelValues(string(i.Severity)).Inc()
	}
	metrics.RecordsProcessed.Inc()

	return Result{
		Record: rec,
		Outcome: validation.Outcome{
			Index:       rec.Index,
			ID:          rec.String(p.opts.IDField),
			Source:      rec.String(p.opts.SourceField),
			Category:    rec.String(p.opts.CategoryField),
			HasLocation: rec.HasLocation(),
			Issues:      issues,
			Matches:     obs.Matches,
		},
		Annotations: ann,
	}
}

func derivedFromCentroid(changes []record.Change) bool {
	for _, ch := range changes {
		if ch == record.ChangeCentroidDerived {
			return true
		}
	}
	return false
}

func countRepair(axis string, r coords.Repair) {
	if r == coords.RepairNone || r == coords.RepairMissing {
		return
	}
	metrics.CoordinateRepairs.WithLabelValues(axis, string(r)).Inc()
}

// Process maps records through ProcessRecord on a bounded worker pool. Results
// keep input order. Cancelling ctx stops the batch and returns ctx's error.
func (p *Pipeline) Process(ctx context.Context, localDebug bool, records []record.Record) ([]Result, error) {
	debug.DebugHeader(localDebug, "process")
	defer debug.DebugFooter(localDebug, "process")

	if len(records) == 0 {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	results := make([]Result, len(records))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	debug.DebugOutput(localDebug, "Processing %d records with %d workers", len(records), p.opts.Workers)

	for i := range records {
		i := i
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.ProcessRecord(records[i])
			debug.Progress("processed", int(done.Add(1)), len(records), p.opts.ProgressEvery, start)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch aborted after %d of %d records: %w", done.Load(), len(records), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch aborted after %d of %d records: %w", done.Load(), len(records), err)
	}

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	debug.DebugOutput(localDebug, "Processed %d records in %v", len(records), time.Since(start))
	return results, nil
}

// Output is a processed batch ready to be written or stored
type Output struct {
	Batch   *Batch
	Results []Result
	Report  *validation.Report
}

// Run processes a decoded batch and builds its quality report
func (p *Pipeline) Run(ctx context.Context, localDebug bool, batch *Batch) (*Output, error) {
	if batch == nil || len(batch.Records) == 0 {
		return nil, ErrEmptyInput
	}

	results, err := p.Process(ctx, localDebug, batch.Records)
	if err != nil {
		return nil, err
	}

	// Aggregation runs after the map, in input order
	reporter := validation.NewReporter()
	for _, r := range results {
		reporter.Add(r.Outcome)
	}

	return &Output{Batch: batch, Results: results, Report: reporter.Report()}, nil
}
