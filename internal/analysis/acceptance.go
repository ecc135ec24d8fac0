package analysis

// Check is one pass/fail acceptance criterion.
type Check struct {
	Label  string `json:"label"`
	Passed bool   `json:"passed"`
}

// Acceptance evaluates the in-sample acceptance criteria.
func Acceptance(m Metrics) []Check {
	return []Check{
		{Label: "Sharpe >= 1.0", Passed: m.SharpeRatio >= 1.0},
		{Label: "Profit Factor >= 1.5", Passed: m.ProfitFactor >= 1.5},
		{Label: "Max DD <= 15%", Passed: m.MaxDrawdownPct >= -15.0},
		{Label: "Trades >= 75", Passed: m.NumTrades >= 75},
		{Label: "Positive Expectancy", Passed: m.PositiveExpectancy},
	}
}

// AllPassed reports whether every check passed.
func AllPassed(checks []Check) bool {
	for _, c := range checks {
		if !c.Passed {
			return false
		}
	}
	return true
}
