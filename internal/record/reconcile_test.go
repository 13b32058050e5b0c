package record

import (
	"math"
	"testing"
	"testing/quick"

	"github.com/twpayne/go-geom"

	"github.com/cali-upid/internal/coords"
	"github.com/cali-upid/internal/geometry"
)

func fptr(f float64) *float64 { return &f }

func hasChange(changes []Change, want Change) bool {
	for _, c := range changes {
		if c == want {
			return true
		}
	}
	return false
}

func TestReconcilePointWithoutProperties(t *testing.T) {
	rec := Record{Geometry: geometry.NewPoint(coords.Coordinate{Lat: 3.4, Lon: -76.5})}

	got, changes := Reconcile(rec, DefaultPrecision)

	if got.Lat == nil || got.Lon == nil {
		t.Fatalf("lat/lon not derived: lat=%v lon=%v", got.Lat, got.Lon)
	}
	if *got.Lat != 3.4 || *got.Lon != -76.5 {
		t.Errorf("derived (%v, %v), want (3.4, -76.5)", *got.Lat, *got.Lon)
	}
	if !hasChange(changes, ChangePropertiesFromPoint) {
		t.Errorf("changes = %v, want %s", changes, ChangePropertiesFromPoint)
	}
	if rec.Lat != nil || rec.Lon != nil {
		t.Error("input record was modified")
	}
}

func TestReconcilePointWithOnlyLatitude(t *testing.T) {
	rec := Record{
		Lat:      fptr(3.41),
		Geometry: geometry.NewPoint(coords.Coordinate{Lat: 3.4, Lon: -76.5}),
	}

	got, _ := Reconcile(rec, DefaultPrecision)
	if err := Consistent(got); err != nil {
		t.Error(err)
	}
	if *got.Lat != 3.4 {
		t.Errorf("lat = %v, want geometry value 3.4", *got.Lat)
	}
}

func TestReconcileMismatchGeometryWins(t *testing.T) {
	rec := Record{
		Lat:      fptr(3.9),
		Lon:      fptr(-76.1),
		Geometry: geometry.NewPoint(coords.Coordinate{Lat: 3.4, Lon: -76.5}),
	}

	got, changes := Reconcile(rec, DefaultPrecision)
	if !hasChange(changes, ChangeMismatchResolved) {
		t.Errorf("changes = %v, want %s", changes, ChangeMismatchResolved)
	}
	if err := Consistent(got); err != nil {
		t.Error(err)
	}
}

func TestReconcileAgreeingPropertiesUntouched(t *testing.T) {
	lat, lon := fptr(3.4000000001), fptr(-76.5)
	rec := Record{
		Lat:      lat,
		Lon:      lon,
		Geometry: geometry.NewPoint(coords.Coordinate{Lat: 3.4, Lon: -76.5}),
	}

	got, changes := Reconcile(rec, DefaultPrecision)
	if len(changes) != 0 {
		t.Errorf("changes = %v, want none", changes)
	}
	if got.Lat != lat || got.Lon != lon {
		t.Error("agreeing properties should be kept")
	}
}

func TestReconcileSynthesizesPoint(t *testing.T) {
	rec := Record{Lat: fptr(3.45), Lon: fptr(-76.45)}

	got, changes := Reconcile(rec, DefaultPrecision)

	p, ok := got.Geometry.(*geom.Point)
	if !ok {
		t.Fatalf("geometry = %T, want *geom.Point", got.Geometry)
	}
	if p.X() != -76.45 || p.Y() != 3.45 {
		t.Errorf("point = (%v, %v), want (-76.45, 3.45)", p.X(), p.Y())
	}
	if !hasChange(changes, ChangeGeometrySynthesized) {
		t.Errorf("changes = %v, want %s", changes, ChangeGeometrySynthesized)
	}
	if rec.Geometry != nil {
		t.Error("input record was modified")
	}
}

func TestReconcileLineCentroid(t *testing.T) {
	line := geom.NewLineString(geom.XY).MustSetCoords([]geom.Coord{{-76.6, 3.4}, {-76.4, 3.4}})
	rec := Record{Geometry: line}

	got, changes := Reconcile(rec, DefaultPrecision)

	if got.Geometry != line {
		t.Error("line geometry must not be replaced by its centroid")
	}
	if !hasChange(changes, ChangeCentroidDerived) {
		t.Errorf("changes = %v, want %s", changes, ChangeCentroidDerived)
	}
	if got.Lat == nil || got.Lon == nil {
		t.Fatal("centroid not written to lat/lon")
	}
	if math.Abs(*got.Lat-3.4) > 1e-9 || math.Abs(*got.Lon+76.5) > 1e-9 {
		t.Errorf("centroid = (%v, %v), want (3.4, -76.5)", *got.Lat, *got.Lon)
	}
}

func TestReconcileNoLocation(t *testing.T) {
	rec := Record{Lon: fptr(-76.5)}

	got, changes := Reconcile(rec, DefaultPrecision)
	if got.Geometry != nil {
		t.Errorf("geometry = %v, want nil", got.Geometry)
	}
	if !hasChange(changes, ChangeNoLocation) {
		t.Errorf("changes = %v, want %s", changes, ChangeNoLocation)
	}
	if got.Lat != nil {
		t.Error("missing latitude must stay missing, not zero")
	}
}

func TestReconcileConsistencyProperty(t *testing.T) {
	f := func(a, b uint16, withProps bool) bool {
		lat := 2.5 + 2.0*float64(a)/math.MaxUint16
		lon := -77.5 + 2.0*float64(b)/math.MaxUint16
		rec := Record{Geometry: geometry.NewPoint(coords.Coordinate{Lat: lat, Lon: lon})}
		if withProps {
			rec.Lat, rec.Lon = fptr(lon), fptr(lat) // swapped on purpose
		}
		got, _ := Reconcile(rec, DefaultPrecision)
		return Consistent(got) == nil
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestFromPropertiesRoundTrip(t *testing.T) {
	props := map[string]interface{}{
		"upid": "UNP-1",
		"lat":  "3,4",
		"lon":  nil,
	}
	rec := FromProperties(7, props, DefaultFields())

	if rec.Index != 7 || rec.LatRaw != "3,4" || rec.LonRaw != nil {
		t.Errorf("unexpected record %+v", rec)
	}
	if _, ok := rec.Properties["lat"]; ok {
		t.Error("lat should be split out of properties")
	}

	rec.Lat = fptr(3.4)
	out := rec.ToProperties(DefaultFields())
	if out["lat"] != 3.4 {
		t.Errorf("lat = %v, want 3.4", out["lat"])
	}
	if v, ok := out["lon"]; !ok || v != nil {
		t.Errorf("lon = %v (present %v), want explicit null", v, ok)
	}
	if out["upid"] != "UNP-1" {
		t.Errorf("upid = %v, want passthrough", out["upid"])
	}
	if props["lat"] != "3,4" {
		t.Error("caller's map was modified")
	}
}

func TestReconcileCoarsePrecisionStaysConsistent(t *testing.T) {
	rec := Record{Geometry: geometry.NewPoint(coords.Coordinate{Lat: 3.4401234567, Lon: -76.4947571234})}

	for _, precision := range []int{1, 4, MinPrecision, DefaultPrecision} {
		got, _ := Reconcile(rec, precision)
		if err := Consistent(got); err != nil {
			t.Errorf("precision %d: %v", precision, err)
		}
		again, changes := Reconcile(got, precision)
		if hasChange(changes, ChangeMismatchResolved) {
			t.Errorf("precision %d: second pass reported a mismatch for %v/%v", precision, *again.Lat, *again.Lon)
		}
	}
}
