package indicators

import "math"

// RSI is Wilder's relative strength index: gains and losses are smoothed
// with alpha = 1/p, seeded from the first observation. The first p-1 values
// are NaN. When average loss is zero the index is 100.
func RSI(closes []float64, p int) []float64 {
	if p <= 0 {
		return nil
	}
	out := make([]float64, len(closes))
	alpha := 1.0 / float64(p)
	var up, dn float64
	for i := range closes {
		var gain, loss float64
		if i > 0 {
			diff := closes[i] - closes[i-1]
			if diff > 0 {
				gain = diff
			} else if diff < 0 {
				loss = -diff
			}
		}
		if i == 0 {
			up, dn = gain, loss
		} else {
			up = (1-alpha)*up + alpha*gain
			dn = (1-alpha)*dn + alpha*loss
		}
		if i < p-1 {
			out[i] = math.NaN()
			continue
		}
		if dn == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+up/dn)
	}
	return out
}
