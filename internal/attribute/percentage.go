package attribute

import "math"

// ToPercentages maps each score to |score| / Σ|scores| × 100. An all-zero
// score map stays all-zero instead of dividing by zero.
func ToPercentages(scores map[string]float64) map[string]float64 {
	total := 0.0
	for _, v := range scores {
		total += math.Abs(v)
	}
	out := make(map[string]float64, len(scores))
	if total == 0 {
		for k := range scores {
			out[k] = 0
		}
		return out
	}
	for k, v := range scores {
		out[k] = math.Abs(v) / total * 100
	}
	return out
}
