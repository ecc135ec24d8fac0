package data

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"momentum-backtest/internal/model"
)

const arrowExt = ".arrow"

// ArrowCache stores one Arrow IPC file per ticker under Dir. Each file has
// the columns date, open, high, low, close, volume and carries the ticker
// in its schema metadata.
type ArrowCache struct {
	Dir             string
	BenchmarkTicker string

	mem memory.Allocator
}

func NewArrowCache(dir, benchmark string) *ArrowCache {
	return &ArrowCache{Dir: dir, BenchmarkTicker: benchmark, mem: memory.NewGoAllocator()}
}

func barSchema(ticker string) *arrow.Schema {
	md := arrow.NewMetadata([]string{"ticker"}, []string{ticker})
	return arrow.NewSchema([]arrow.Field{
		{Name: "date", Type: arrow.FixedWidthTypes.Date32},
		{Name: "open", Type: arrow.PrimitiveTypes.Float64},
		{Name: "high", Type: arrow.PrimitiveTypes.Float64},
		{Name: "low", Type: arrow.PrimitiveTypes.Float64},
		{Name: "close", Type: arrow.PrimitiveTypes.Float64},
		{Name: "volume", Type: arrow.PrimitiveTypes.Float64},
	}, &md)
}

// Path is the cache file for ticker.
func (c *ArrowCache) Path(ticker string) string {
	return filepath.Join(c.Dir, strings.ToUpper(ticker)+arrowExt)
}

// Has reports whether ticker has a cache file.
func (c *ArrowCache) Has(ticker string) bool {
	_, err := os.Stat(c.Path(ticker))
	return err == nil
}

// Save writes s to its cache file, replacing any previous version.
func (c *ArrowCache) Save(s *model.Series) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	schema := barSchema(s.Ticker)

	b := array.NewRecordBuilder(c.mem, schema)
	defer b.Release()
	date := b.Field(0).(*array.Date32Builder)
	cols := make([]*array.Float64Builder, 5)
	for i := range cols {
		cols[i] = b.Field(i + 1).(*array.Float64Builder)
	}
	for i := 0; i < s.Len(); i++ {
		bar := s.At(i)
		date.Append(arrow.Date32FromTime(bar.Date))
		cols[0].Append(bar.Open)
		cols[1].Append(bar.High)
		cols[2].Append(bar.Low)
		cols[3].Append(bar.Close)
		cols[4].Append(bar.Volume)
	}
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w, err := ipc.NewFileWriter(&buf, ipc.WithSchema(schema), ipc.WithAllocator(c.mem))
	if err != nil {
		return fmt.Errorf("arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", s.Ticker, err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.Dir, "."+s.Ticker+"-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), c.Path(s.Ticker))
}

// Load reads ticker's cache file.
func (c *ArrowCache) Load(ticker string) (*model.Series, error) {
	f, err := os.Open(c.Path(ticker))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNotCached)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(c.mem))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ticker, err)
	}
	defer r.Close()

	name := strings.ToUpper(ticker)
	if md := r.Schema().Metadata(); md.FindKey("ticker") >= 0 {
		name = md.Values()[md.FindKey("ticker")]
	}

	var bars []model.Bar
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("read %s batch %d: %w", ticker, i, err)
		}
		bars, err = appendBars(bars, rec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ticker, err)
		}
	}
	return model.NewSeries(name, bars)
}

func appendBars(bars []model.Bar, rec arrow.Record) ([]model.Bar, error) {
	if rec.NumCols() != 6 {
		return nil, fmt.Errorf("expected 6 columns, got %d", rec.NumCols())
	}
	date, ok := rec.Column(0).(*array.Date32)
	if !ok {
		return nil, fmt.Errorf("date column has type %s", rec.Column(0).DataType())
	}
	f := make([]*array.Float64, 5)
	for i := range f {
		col, ok := rec.Column(i + 1).(*array.Float64)
		if !ok {
			return nil, fmt.Errorf("column %s has type %s", rec.ColumnName(i+1), rec.Column(i+1).DataType())
		}
		f[i] = col
	}
	for j := 0; j < int(rec.NumRows()); j++ {
		bars = append(bars, model.Bar{
			Date:   date.Value(j).ToTime(),
			Open:   f[0].Value(j),
			High:   f[1].Value(j),
			Low:    f[2].Value(j),
			Close:  f[3].Value(j),
			Volume: f[4].Value(j),
		})
	}
	return bars, nil
}

func (c *ArrowCache) Bars(_ context.Context, ticker string) (*model.Series, error) {
	return c.Load(ticker)
}

func (c *ArrowCache) Benchmark(_ context.Context) (*model.Series, error) {
	return c.Load(c.BenchmarkTicker)
}

// Tickers lists cached tickers, excluding the benchmark. A missing cache
// directory is an error.
func (c *ArrowCache) Tickers(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, fmt.Errorf("cache dir %s: %w", c.Dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, arrowExt) {
			continue
		}
		t := strings.TrimSuffix(name, arrowExt)
		if strings.EqualFold(t, c.BenchmarkTicker) {
			continue
		}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
