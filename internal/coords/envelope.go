package coords

import "fmt"

// Coordinate is a latitude/longitude pair in decimal degrees (WGS 84)
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", c.Lat, c.Lon)
}

// Envelope is the bounding box a coordinate must fall in to be accepted
type Envelope struct {
	MinLat float64 `json:"min_lat" mapstructure:"min_lat"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat"`
	MinLon float64 `json:"min_lon" mapstructure:"min_lon"`
	MaxLon float64 `json:"max_lon" mapstructure:"max_lon"`
}

// DefaultEnvelope is the generous acceptance envelope around Santiago de Cali.
func DefaultEnvelope() Envelope {
	return Envelope{MinLat: 2.5, MaxLat: 4.5, MinLon: -77.5, MaxLon: -75.5}
}

// StrictEnvelope is the canonical municipal range used for stricter checks.
func StrictEnvelope() Envelope {
	return Envelope{MinLat: 3.0, MaxLat: 4.0, MinLon: -77.0, MaxLon: -76.0}
}

// ContainsLat reports whether lat lies inside the envelope (inclusive)
func (e Envelope) ContainsLat(lat float64) bool {
	return lat >= e.MinLat && lat <= e.MaxLat
}

// ContainsLon reports whether lon lies inside the envelope (inclusive)
func (e Envelope) ContainsLon(lon float64) bool {
	return lon >= e.MinLon && lon <= e.MaxLon
}

// Contains reports whether both components lie inside the envelope
func (e Envelope) Contains(c Coordinate) bool {
	return e.ContainsLat(c.Lat) && e.ContainsLon(c.Lon)
}

// Validate checks the envelope is well formed.
func (e Envelope) Validate() error {
	if e.MinLat >= e.MaxLat {
		return fmt.Errorf("envelope min_lat %.4f must be below max_lat %.4f", e.MinLat, e.MaxLat)
	}
	if e.MinLon >= e.MaxLon {
		return fmt.Errorf("envelope min_lon %.4f must be below max_lon %.4f", e.MinLon, e.MaxLon)
	}
	if e.MinLat < -90 || e.MaxLat > 90 {
		return fmt.Errorf("envelope latitude outside [-90, 90]")
	}
	if e.MinLon < -180 || e.MaxLon > 180 {
		return fmt.Errorf("envelope longitude outside [-180, 180]")
	}
	return nil
}
