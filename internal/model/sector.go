package model

// UnknownSector is reported for tickers missing from a SectorMap.
const UnknownSector = "Unknown"

// SectorMap is a ticker -> sector name lookup.
type SectorMap map[string]string

func (m SectorMap) Sector(ticker string) string {
	if s, ok := m[ticker]; ok && s != "" {
		return s
	}
	return UnknownSector
}
