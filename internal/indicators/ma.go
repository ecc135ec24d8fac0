package indicators

import "math"

// SMA over the last `p` points; returns a slice aligned to input length with NaNs for warmup.
func SMA(x []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(x))
	var sum float64
	for i := range x {
		sum += x[i]
		if i >= p {
			sum -= x[i-p]
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(p)
	}
	return out
}

// TailMean averages the last p values of x (all of x when shorter).
// Returns NaN for empty input.
func TailMean(x []float64, p int) float64 {
	if len(x) == 0 || p <= 0 {
		return math.NaN()
	}
	if p > len(x) {
		p = len(x)
	}
	var sum float64
	for _, v := range x[len(x)-p:] {
		sum += v
	}
	return sum / float64(p)
}

// Defined reports whether v carries a value (not NaN).
func Defined(v float64) bool { return !math.IsNaN(v) }
