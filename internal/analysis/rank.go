package analysis

import "sort"

// LabeledMetrics ties a run's metrics to a caller-chosen label.
type LabeledMetrics struct {
	Label string
	Metrics
}

// RankBySharpe sorts runs by descending Sharpe ratio, breaking ties on
// total return.
func RankBySharpe(runs []LabeledMetrics) []LabeledMetrics {
	out := append([]LabeledMetrics(nil), runs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SharpeRatio != out[j].SharpeRatio {
			return out[i].SharpeRatio > out[j].SharpeRatio
		}
		return out[i].TotalReturnPct > out[j].TotalReturnPct
	})
	return out
}
