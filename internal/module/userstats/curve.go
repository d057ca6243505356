package userstats

import "math"

// XPForLevel is the total experience required to reach level.
func XPForLevel(level uint16) uint64 {
	if level == 0 {
		return 0
	}
	l := uint64(level)
	xp := 10 * l * l * (l + 9)
	if l > 255 {
		b := l - 256
		xp += 1000 * b * b * (b + 9)
	}
	return xp
}

// LevelPercentage is the number of levels, as a fraction, that gained
// experience covers when starting from start total experience. Each level
// contributes the share of its span that the gain consumed.
func LevelPercentage(start, gained uint64) float64 {
	level := uint16(1)
	for level < math.MaxUint16 && XPForLevel(level) <= start {
		level++
	}

	var pct float64
	for gained > 0 {
		lo, hi := XPForLevel(level-1), XPForLevel(level)
		if start >= hi {
			break
		}
		start = max(start, lo)
		used := min(gained, hi-start)
		pct += float64(used) / float64(hi-lo)
		gained -= used
		start = hi
		if level == math.MaxUint16 {
			break
		}
		level++
	}
	return pct
}
