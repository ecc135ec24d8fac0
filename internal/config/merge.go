package config

// Merge overlays non-zero fields from override onto base.
// This is used when a request or CLI supplies a partial parameter set.
// Zero never overrides, so RequireBelowSMA5 cannot be switched off and
// SlippagePct or CommissionPerTrade cannot be cleared to 0 this way; use
// WithOverrides.
func Merge(base, override Config) Config {
	out := base.WithOverrides(nil)

	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	num := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	win := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}

	str(&out.RegimeIndex, override.RegimeIndex)
	win(&out.RegimeSMALong, override.RegimeSMALong)
	win(&out.RegimeSMAShort, override.RegimeSMAShort)

	num(&out.MinPrice, override.MinPrice)
	num(&out.MinAvgVolume, override.MinAvgVolume)
	win(&out.AvgVolumeWindow, override.AvgVolumeWindow)
	win(&out.TrendSMAPeriod, override.TrendSMAPeriod)

	win(&out.RSLookbackShort, override.RSLookbackShort)
	win(&out.RSLookbackMed, override.RSLookbackMed)
	win(&out.RSLookbackLong, override.RSLookbackLong)
	num(&out.RSWeightShort, override.RSWeightShort)
	num(&out.RSWeightMed, override.RSWeightMed)
	num(&out.RSWeightLong, override.RSWeightLong)
	win(&out.WatchlistSize, override.WatchlistSize)
	win(&out.SectorCap, override.SectorCap)
	if len(override.ExcludedSectors) > 0 {
		out.ExcludedSectors = append([]string(nil), override.ExcludedSectors...)
	}
	if len(override.SupplementalTickers) > 0 {
		out.SupplementalTickers = append([]string(nil), override.SupplementalTickers...)
	}

	win(&out.RSIPeriod, override.RSIPeriod)
	num(&out.RSIEntryThreshold, override.RSIEntryThreshold)
	num(&out.RSIExitThreshold, override.RSIExitThreshold)
	if override.RequireBelowSMA5 {
		out.RequireBelowSMA5 = true
	}
	win(&out.SMA5Period, override.SMA5Period)

	win(&out.ATRPeriod, override.ATRPeriod)
	num(&out.StopATRMultiple, override.StopATRMultiple)
	num(&out.MaxStopPercent, override.MaxStopPercent)
	num(&out.RiskPerTrade, override.RiskPerTrade)
	win(&out.MaxPositions, override.MaxPositions)
	win(&out.MaxSectorPositions, override.MaxSectorPositions)
	win(&out.TimeStopDays, override.TimeStopDays)
	win(&out.ReentryCooldownDays, override.ReentryCooldownDays)

	num(&out.InitialCapital, override.InitialCapital)
	num(&out.SlippagePct, override.SlippagePct)
	num(&out.CommissionPerTrade, override.CommissionPerTrade)
	str(&out.BacktestStart, override.BacktestStart)
	str(&out.BacktestEnd, override.BacktestEnd)

	str(&out.CacheDir, override.CacheDir)
	str(&out.SectorsFile, override.SectorsFile)
	return out
}
