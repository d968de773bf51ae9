package letter

// DefaultThreshold is the minimum run length for labels without an override.
const DefaultThreshold = 5

// DefaultOverrides are the per-letter thresholds for letters whose hand shape
// needs a longer hold before it reads reliably.
var DefaultOverrides = map[Label]int{
	"S": 3,
	"E": 5,
	"A": 5,
	"N": 6,
	"R": 5,
}

// Thresholds is a read-only per-label minimum run length table.
// A run of label L may be promoted once it is strictly longer than For(L).
type Thresholds struct {
	fallback  int
	overrides map[Label]int
}

// NewThresholds copies overrides into a new table. A fallback <= 0 selects
// DefaultThreshold.
func NewThresholds(fallback int, overrides map[Label]int) Thresholds {
	if fallback <= 0 {
		fallback = DefaultThreshold
	}
	copied := make(map[Label]int, len(overrides))
	for l, n := range overrides {
		copied[l] = n
	}
	return Thresholds{fallback: fallback, overrides: copied}
}

// DefaultThresholds returns the stock table.
func DefaultThresholds() Thresholds {
	return NewThresholds(DefaultThreshold, DefaultOverrides)
}

// For returns the threshold that applies to l.
func (t Thresholds) For(l Label) int {
	if n, ok := t.overrides[l]; ok {
		return n
	}
	if t.fallback <= 0 {
		return DefaultThreshold
	}
	return t.fallback
}

// Default returns the fallback threshold.
func (t Thresholds) Default() int {
	if t.fallback <= 0 {
		return DefaultThreshold
	}
	return t.fallback
}
