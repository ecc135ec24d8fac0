package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"momentum-backtest/internal/model"
)

// LoadSectors reads a ticker -> sector map. Files ending in .json hold a
// flat object; anything else is CSV with a header containing a ticker
// column (Symbol or Ticker) and a sector column (Sector or GICS Sector).
func LoadSectors(path string) (model.SectorMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sectors file: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var m model.SectorMap
		if err := json.NewDecoder(decoded(f)).Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to parse sectors file: %w", err)
		}
		return m, nil
	}
	m, err := ReadSectorsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sectors file: %w", err)
	}
	return m, nil
}

func ReadSectorsCSV(r io.Reader) (model.SectorMap, error) {
	cr := csv.NewReader(decoded(r))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return model.SectorMap{}, nil
	}
	tickerCol, sectorCol := -1, -1
	for i, h := range rows[0] {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "symbol", "ticker":
			tickerCol = i
		case "sector", "gics sector":
			sectorCol = i
		}
	}
	if tickerCol < 0 || sectorCol < 0 {
		return nil, fmt.Errorf("header must name a symbol and a sector column")
	}
	m := make(model.SectorMap, len(rows)-1)
	for _, row := range rows[1:] {
		if tickerCol >= len(row) || sectorCol >= len(row) {
			continue
		}
		t := strings.ToUpper(strings.TrimSpace(row[tickerCol]))
		if t == "" {
			continue
		}
		m[t] = strings.TrimSpace(row[sectorCol])
	}
	return m, nil
}

// SaveSectors writes m as indented JSON.
func SaveSectors(m model.SectorMap, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sectors: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write sectors file: %w", err)
	}
	return nil
}

// DefaultSectorsPath is SECTORS_FILE or ./data/sectors.csv.
func DefaultSectorsPath() string {
	if p := os.Getenv("SECTORS_FILE"); p != "" {
		return p
	}
	return "./data/sectors.csv"
}
