package trace

// Stats are counts of what happened to each line of a trace.
//
// Every line is either a marker, a counted record, or skipped for exactly one reason.
type Stats struct {
	Lines   uint64 `json:"lines"`
	Markers uint64 `json:"markers"`
	Counted uint64 `json:"counted"`

	// BeforeMarker are lines seen before the first SysCall marker.
	BeforeMarker uint64 `json:"before_marker"`
	TooFewFields uint64 `json:"too_few_fields"`
	NotHex       uint64 `json:"not_hex"`
	NonPositive  uint64 `json:"non_positive"`

	// Truncated are lines too long to keep whole. They are still parsed from their leading fields and
	// counted above like any other line.
	Truncated uint64 `json:"truncated"`

	// MinValue and MaxValue only hold data when Counted > 0. Values wider than 64 bits saturate.
	MinValue uint64 `json:"min_value"`
	MaxValue uint64 `json:"max_value"`
}

// Skipped is the number of lines that were neither markers nor counted.
func (s *Stats) Skipped() uint64 {
	return s.BeforeMarker + s.TooFewFields + s.NotHex + s.NonPositive
}

func (s *Stats) observe(v uint64) {
	if s.Counted == 0 || v < s.MinValue {
		s.MinValue = v
	}

	if v > s.MaxValue {
		s.MaxValue = v
	}

	s.Counted++
}
