package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"momentum-backtest/internal/model"
)

var csvDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
	"20060102",
}

// decoded wraps r so UTF-8 and UTF-16 files with a byte order mark are
// read as UTF-8 text; input without a BOM passes through as UTF-8.
func decoded(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadBarsCSV parses daily bars with a header row naming the columns
// date, open, high, low, close and volume (case-insensitive, any order).
// Extra columns are ignored.
func ReadBarsCSV(r io.Reader) ([]model.Bar, error) {
	cr := csv.NewReader(decoded(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	want := []string{"date", "open", "high", "low", "close", "volume"}
	cols := make([]int, len(want))
	for i, name := range want {
		j, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		cols[i] = j
	}

	var bars []model.Bar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		b, err := parseBarRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseBarRecord(rec []string, cols []int) (model.Bar, error) {
	field := func(i int) (string, error) {
		if cols[i] >= len(rec) {
			return "", fmt.Errorf("short record")
		}
		return strings.TrimSpace(rec[cols[i]]), nil
	}
	ds, err := field(0)
	if err != nil {
		return model.Bar{}, err
	}
	date, err := parseDate(ds)
	if err != nil {
		return model.Bar{}, err
	}
	vals := make([]float64, 5)
	for i := range vals {
		s, err := field(i + 1)
		if err != nil {
			return model.Bar{}, err
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Bar{}, fmt.Errorf("invalid number %q", s)
		}
		vals[i] = v
	}
	return model.Bar{Date: date, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ImportCSV reads a bars CSV file into a Series for ticker.
func ImportCSV(path, ticker string) (*model.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	bars, err := ReadBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return model.NewSeries(strings.ToUpper(ticker), bars)
}
