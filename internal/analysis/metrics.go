package analysis

import (
	"math"
	"time"

	"momentum-backtest/internal/model"
)

const (
	TradingDaysPerYear = 252
	RiskFreeRate       = 0.045
)

// Metrics summarizes a run. Percentages are in percent units; drawdowns are
// negative. ProfitFactor is +Inf when there are winners and no losers.
type Metrics struct {
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	SharpeRatio         float64
	SortinoRatio        float64
	ProfitFactor        float64
	MaxDrawdownPct      float64
	MaxDrawdownDate     time.Time

	NumTrades          int
	WinRatePct         float64
	AvgWinPct          float64
	AvgLossPct         float64
	AvgWinDollars      float64
	AvgLossDollars     float64
	GrossGains         float64
	GrossLosses        float64
	AvgHoldingDays     float64
	PositiveExpectancy bool
	ExitReasons        map[model.ExitReason]int

	ExposurePct    float64
	InitialCapital float64
	FinalValue     float64
	TotalDays      int

	// BenchmarkReturnPct is buy-and-hold over the curve's window; nil when
	// no benchmark was supplied or it has no bars in the window.
	BenchmarkReturnPct *float64
}

// Compute derives every metric from the equity curve and trade log.
func Compute(curve []model.DailySnapshot, trades []model.TradeRecord, initialCapital float64, benchmark *model.Series) Metrics {
	m := Metrics{
		InitialCapital: initialCapital,
		TotalDays:      len(curve),
		ExitReasons:    make(map[model.ExitReason]int),
	}
	if len(curve) == 0 {
		m.FinalValue = initialCapital
		return m
	}

	values := make([]float64, len(curve))
	for i, s := range curve {
		values[i] = s.AccountValue()
	}
	m.FinalValue = values[len(values)-1]
	m.TotalReturnPct = (m.FinalValue/initialCapital - 1) * 100
	if years := float64(len(curve)) / TradingDaysPerYear; years > 0 {
		m.AnnualizedReturnPct = (math.Pow(m.FinalValue/initialCapital, 1/years) - 1) * 100
	}

	m.SharpeRatio, m.SortinoRatio = riskAdjusted(dailyReturns(values))

	dd := drawdowns(values)
	for i, v := range dd {
		if v < m.MaxDrawdownPct || i == 0 {
			m.MaxDrawdownPct = v
			m.MaxDrawdownDate = curve[i].Date
		}
	}

	exposed := 0
	for _, s := range curve {
		if s.NumPositions > 0 {
			exposed++
		}
	}
	m.ExposurePct = float64(exposed) / float64(len(curve)) * 100

	tradeStats(&m, trades)

	if benchmark != nil {
		first, last := curve[0].Date, curve[len(curve)-1].Date
		lo := benchmark.CountThrough(first.AddDate(0, 0, -1))
		hi := benchmark.CountThrough(last)
		if hi > lo && benchmark.At(lo).Close != 0 {
			r := (benchmark.At(hi-1).Close/benchmark.At(lo).Close - 1) * 100
			m.BenchmarkReturnPct = &r
		}
	}
	return m
}

func tradeStats(m *Metrics, trades []model.TradeRecord) {
	m.NumTrades = len(trades)
	if len(trades) == 0 {
		return
	}
	var wins, losses int
	var winPct, lossPct, holding float64
	for _, t := range trades {
		pnl := t.PnL()
		if pnl > 0 {
			wins++
			winPct += t.PnLPct()
			m.GrossGains += pnl
		} else {
			losses++
			lossPct += t.PnLPct()
			m.GrossLosses += pnl
		}
		holding += float64(t.HoldingDays())
		m.ExitReasons[t.ExitReason]++
	}
	if wins > 0 {
		m.AvgWinPct = winPct / float64(wins)
		m.AvgWinDollars = m.GrossGains / float64(wins)
	}
	if losses > 0 {
		m.AvgLossPct = lossPct / float64(losses)
		m.AvgLossDollars = m.GrossLosses / float64(losses)
	}
	m.GrossLosses = math.Abs(m.GrossLosses)
	if m.GrossLosses > 0 {
		m.ProfitFactor = m.GrossGains / m.GrossLosses
	} else {
		m.ProfitFactor = math.Inf(1)
	}
	m.WinRatePct = float64(wins) / float64(len(trades)) * 100
	m.AvgHoldingDays = holding / float64(len(trades))

	winRate := m.WinRatePct / 100
	m.PositiveExpectancy = winRate*m.AvgWinDollars > (1-winRate)*math.Abs(m.AvgLossDollars)
}

func dailyReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

// riskAdjusted returns annualized Sharpe and Sortino ratios of daily
// returns in excess of the daily risk-free rate. Sharpe uses the sample
// standard deviation; Sortino uses the root mean square of negative
// excess returns. Either is 0 when its denominator is 0.
func riskAdjusted(returns []float64) (sharpe, sortino float64) {
	if len(returns) == 0 {
		return 0, 0
	}
	dailyRF := math.Pow(1+RiskFreeRate, 1.0/TradingDaysPerYear) - 1
	excess := make([]float64, len(returns))
	var sum float64
	for i, r := range returns {
		excess[i] = r - dailyRF
		sum += excess[i]
	}
	mean := sum / float64(len(excess))
	scale := math.Sqrt(TradingDaysPerYear)

	if len(excess) > 1 {
		var ss float64
		for _, e := range excess {
			ss += (e - mean) * (e - mean)
		}
		if sd := math.Sqrt(ss / float64(len(excess)-1)); sd > 0 {
			sharpe = mean / sd * scale
		}
	}

	var down float64
	var n int
	for _, e := range excess {
		if e < 0 {
			down += e * e
			n++
		}
	}
	if n > 0 {
		if dsd := math.Sqrt(down / float64(n)); dsd > 0 {
			sortino = mean / dsd * scale
		}
	}
	return sharpe, sortino
}

// drawdowns is the percent distance of each value below its running peak.
func drawdowns(values []float64) []float64 {
	out := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		peak = math.Max(peak, v)
		out[i] = (v - peak) / peak * 100
	}
	return out
}

// DrawdownPoint is one date of the drawdown series.
type DrawdownPoint struct {
	Date        time.Time `json:"date"`
	DrawdownPct float64   `json:"drawdown_pct"`
}

func DrawdownSeries(curve []model.DailySnapshot) []DrawdownPoint {
	values := make([]float64, len(curve))
	for i, s := range curve {
		values[i] = s.AccountValue()
	}
	out := make([]DrawdownPoint, len(curve))
	for i, v := range drawdowns(values) {
		out[i] = DrawdownPoint{Date: curve[i].Date, DrawdownPct: v}
	}
	return out
}

// MonthlyReturn is the percent change of month-end account value versus
// the previous month end.
type MonthlyReturn struct {
	Year      int        `json:"year"`
	Month     time.Month `json:"month"`
	ReturnPct float64    `json:"return_pct"`
}

// MonthlyReturns compares consecutive month-end values. The first month
// has no prior month end and is omitted.
func MonthlyReturns(curve []model.DailySnapshot) []MonthlyReturn {
	type monthEnd struct {
		year  int
		month time.Month
		value float64
	}
	var ends []monthEnd
	for _, s := range curve {
		y, mo, _ := s.Date.Date()
		if n := len(ends); n > 0 && ends[n-1].year == y && ends[n-1].month == mo {
			ends[n-1].value = s.AccountValue()
			continue
		}
		ends = append(ends, monthEnd{year: y, month: mo, value: s.AccountValue()})
	}
	var out []MonthlyReturn
	for i := 1; i < len(ends); i++ {
		out = append(out, MonthlyReturn{
			Year:      ends[i].year,
			Month:     ends[i].month,
			ReturnPct: (ends[i].value/ends[i-1].value - 1) * 100,
		})
	}
	return out
}
