package coords

import "math"

const (
	dmsSecondsThreshold = 1_000_000
	dmsMinutesThreshold = 1_000
)

// fromDMS interprets a large-magnitude number as degrees/minutes[/seconds]
// written without separators. Values >= 1e6 are read as DDD...MMSS, values in
// [1e3, 1e6) as DDD...MM. The original sign is kept.
func fromDMS(v float64) (float64, Repair, bool) {
	abs := math.Abs(v)
	if math.IsNaN(abs) || math.IsInf(abs, 0) || abs < dmsMinutesThreshold {
		return 0, RepairRejected, false
	}

	sign := 1.0
	if v < 0 {
		sign = -1.0
	}
	n := math.Trunc(abs)

	if abs >= dmsSecondsThreshold {
		seconds := math.Mod(n, 100)
		minutes := math.Mod(math.Trunc(n/100), 100)
		degrees := math.Trunc(n / 10000)
		if minutes >= 60 || seconds >= 60 {
			return 0, RepairRejected, false
		}
		return sign * (degrees + minutes/60 + seconds/3600), RepairDMS, true
	}

	minutes := math.Mod(n, 100)
	degrees := math.Trunc(n / 100)
	if minutes >= 60 {
		return 0, RepairRejected, false
	}
	return sign * (degrees + minutes/60), RepairDMSMinutes, true
}
