package model

// Verdict is the oracle's judgement on whether two clusters denote one
// real-world entity.
type Verdict string

const (
	VerdictSame      Verdict = "SAME"
	VerdictDifferent Verdict = "DIFFERENT"
	VerdictUncertain Verdict = "UNCERTAIN"
)

// ValidVerdict reports whether v is one of the three allowed verdicts.
func ValidVerdict(v Verdict) bool {
	switch v {
	case VerdictSame, VerdictDifferent, VerdictUncertain:
		return true
	}
	return false
}

// Decision is a single oracle judgement. ClusterB is empty for single-cluster
// resolutions, where only the canonical label is of interest. Decisions are
// consumed once by the merger; a malformed oracle response surfaces as
// UNCERTAIN with confidence 0, never as an error.
type Decision struct {
	ClusterA   string  `json:"cluster_a"`
	ClusterB   string  `json:"cluster_b,omitempty"`
	Verdict    Verdict `json:"verdict"`
	Label      string  `json:"canonical_label,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Uncertain builds the fail-safe decision used when the oracle is
// unreachable or returns garbage: never merge on missing evidence.
func Uncertain(clusterA, clusterB string) Decision {
	return Decision{
		ClusterA:   clusterA,
		ClusterB:   clusterB,
		Verdict:    VerdictUncertain,
		Confidence: 0,
	}
}
