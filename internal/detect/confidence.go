// Package detect provides the anomaly detectors for FieldAudit.
// It supports temporal overlap, travel-time feasibility, remote-session
// corroboration and missing-report detection with shared confidence scoring.
package detect

// Factor is one weighted condition contributing to a confidence score.
type Factor struct {
	When   bool
	Weight float64
}

// Score combines a base confidence with weighted factors and clamps the
// result to [0,100]. Every detector scores through this function so the
// clamping and threshold behavior cannot drift between rules.
func Score(base float64, factors ...Factor) float64 {
	score := base
	for _, f := range factors {
		if f.When {
			score += f.Weight
		}
	}
	return Clamp(score)
}

// Clamp limits a confidence score to [0,100].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// MeetsThreshold is the gate every detector applies before a finding may
// become an alert.
func MeetsThreshold(score, min float64) bool {
	return score >= min
}
