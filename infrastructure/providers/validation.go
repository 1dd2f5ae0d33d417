package providers

// Parameter bounds shared across providers.
const (
	// MinTemperature is the minimum allowed sampling temperature.
	MinTemperature = 0.0
	// MaxTemperature is the maximum allowed sampling temperature; 2.0
	// accommodates providers like Gemini.
	MaxTemperature = 2.0
)

// ClampFloat64 constrains val to the inclusive range [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
