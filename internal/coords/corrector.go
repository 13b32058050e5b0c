package coords

import (
	"math"

	"github.com/cali-upid/internal/normalize"
)

// Repair describes what the corrector had to do to accept (or reject) a value
type Repair string

const (
	RepairNone           Repair = "none"            // accepted as given
	RepairMissing        Repair = "missing"         // blank or absent
	RepairUnparseable    Repair = "unparseable"     // present but not a number
	RepairSignInverted   Repair = "sign_inverted"   // positive longitude negated
	RepairTruncatedDigit Repair = "truncated_digit" // dropped leading 7 restored
	RepairDMS            Repair = "dms"             // DDD...MMSS without separators
	RepairDMSMinutes     Repair = "dms_minutes"     // DDD...MM without separators
	RepairRejected       Repair = "rejected"        // number present but unrecoverable
)

// Repaired reports whether the value was changed to become acceptable
func (r Repair) Repaired() bool {
	switch r {
	case RepairSignInverted, RepairTruncatedDigit, RepairDMS, RepairDMSMinutes:
		return true
	}
	return false
}

// Correction is the per-axis outcome of correcting a raw pair
type Correction struct {
	Lat       *float64
	Lon       *float64
	LatRepair Repair
	LonRepair Repair

	// Numeric values before any heuristic was applied
	LatParsed *float64
	LonParsed *float64
}

// Coordinate returns the pair when both axes were recovered.
func (c Correction) Coordinate() (Coordinate, bool) {
	if c.Lat == nil || c.Lon == nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: *c.Lat, Lon: *c.Lon}, true
}

// Corrector brings raw source numbers into the municipal envelope
type Corrector struct {
	Envelope Envelope

	// Positive longitudes in this magnitude band have lost their minus sign
	SignRepairMin float64
	SignRepairMax float64

	// Whole degrees restored when a longitude lost its leading digit
	TruncatedBase float64
}

// NewCorrector creates a corrector for the given envelope
func NewCorrector(env Envelope) *Corrector {
	return &Corrector{
		Envelope:      env,
		SignRepairMin: 76.0,
		SignRepairMax: 77.5,
		TruncatedBase: 76.0,
	}
}

// DefaultCorrector uses DefaultEnvelope.
func DefaultCorrector() *Corrector {
	return NewCorrector(DefaultEnvelope())
}

// CorrectPair returns the corrected latitude and longitude. Either may be nil
// independently of the other; failure is never reported as zero.
func (c *Corrector) CorrectPair(latRaw, lonRaw interface{}) (*float64, *float64) {
	res := c.Correct(latRaw, lonRaw)
	return res.Lat, res.Lon
}

// Correct is CorrectPair with the repair applied on each axis.
func (c *Corrector) Correct(latRaw, lonRaw interface{}) Correction {
	res := Correction{
		LatParsed: normalize.Decimal(latRaw),
		LonParsed: normalize.Decimal(lonRaw),
	}
	res.Lat, res.LatRepair = c.correctLat(res.LatParsed)
	res.Lon, res.LonRepair = c.correctLon(res.LonParsed)
	if res.LatRepair == RepairMissing && !normalize.IsBlank(latRaw) {
		res.LatRepair = RepairUnparseable
	}
	if res.LonRepair == RepairMissing && !normalize.IsBlank(lonRaw) {
		res.LonRepair = RepairUnparseable
	}
	return res
}

// CorrectCoordinate runs an already numeric pair (e.g. from a Point geometry)
// through the same heuristics.
func (c *Corrector) CorrectCoordinate(in Coordinate) (Coordinate, Correction, bool) {
	res := c.Correct(in.Lat, in.Lon)
	out, ok := res.Coordinate()
	return out, res, ok
}

func (c *Corrector) correctLat(v *float64) (*float64, Repair) {
	if v == nil {
		return nil, RepairMissing
	}
	lat := *v

	if math.Abs(lat) <= 90 && c.Envelope.ContainsLat(lat) {
		return &lat, RepairNone
	}

	if dms, repair, ok := fromDMS(lat); ok && c.Envelope.ContainsLat(dms) {
		return &dms, repair
	}

	return nil, RepairRejected
}

func (c *Corrector) correctLon(v *float64) (*float64, Repair) {
	if v == nil {
		return nil, RepairMissing
	}
	lon := *v
	repair := RepairNone

	if lon > 0 && lon >= c.SignRepairMin && lon <= c.SignRepairMax {
		lon = -lon
		repair = RepairSignInverted
	} else if lon < 0 && lon > -10.0 {
		_, frac := math.Modf(math.Abs(lon))
		rebuilt := -(c.TruncatedBase + frac)
		if c.Envelope.ContainsLon(rebuilt) {
			lon = rebuilt
			repair = RepairTruncatedDigit
		}
	}

	if c.Envelope.ContainsLon(lon) {
		return &lon, repair
	}

	if dms, dmsRepair, ok := fromDMS(*v); ok && c.Envelope.ContainsLon(dms) {
		return &dms, dmsRepair
	}

	return nil, RepairRejected
}

// Valid reports whether an already corrected pair is inside the envelope.
func (c *Corrector) Valid(lat, lon *float64) bool {
	return lat != nil && lon != nil && c.Envelope.Contains(Coordinate{Lat: *lat, Lon: *lon})
}
