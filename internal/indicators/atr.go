package indicators

import "math"

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|); the first bar uses high-low.
func TrueRange(high, low, close []float64) []float64 {
	n := min(len(high), len(low), len(close))
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		tr := high[i] - low[i]
		if i > 0 {
			tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
			tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		}
		out[i] = tr
	}
	return out
}

// ATR seeds with the mean of the first p true ranges, then applies Wilder
// smoothing: atr[i] = (atr[i-1]*(p-1) + tr[i]) / p. Warmup values are NaN.
func ATR(high, low, close []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	tr := TrueRange(high, low, close)
	out := make([]float64, len(tr))
	for i := range out {
		out[i] = math.NaN()
	}
	if len(tr) < p {
		return out
	}
	var seed float64
	for _, v := range tr[:p] {
		seed += v
	}
	out[p-1] = seed / float64(p)
	for i := p; i < len(tr); i++ {
		out[i] = (out[i-1]*float64(p-1) + tr[i]) / float64(p)
	}
	return out
}
