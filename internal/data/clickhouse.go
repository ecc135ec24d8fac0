package data

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"momentum-backtest/internal/model"
)

// ClickHouseOptions configures ClickHouseStore.
type ClickHouseOptions struct {
	Addr      string
	Database  string
	Username  string
	Password  string
	Table     string // defaults to daily_bars
	Benchmark string
}

// ClickHouseStore reads and writes daily bars in a ClickHouse table with
// columns (ticker, date, open, high, low, close, volume).
type ClickHouseStore struct {
	conn      driver.Conn
	table     string
	benchmark string
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func validTable(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// OpenClickHouse connects and pings the server.
func OpenClickHouse(ctx context.Context, opts ClickHouseOptions) (*ClickHouseStore, error) {
	if opts.Table == "" {
		opts.Table = "daily_bars"
	}
	if err := validTable(opts.Table); err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping ClickHouse: %w", err)
	}
	return &ClickHouseStore{conn: conn, table: opts.Table, benchmark: opts.Benchmark}, nil
}

func (s *ClickHouseStore) Close() error { return s.conn.Close() }

// EnsureTable creates the bars table if needed.
func (s *ClickHouseStore) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	ticker LowCardinality(String),
	date   Date,
	open   Float64,
	high   Float64,
	low    Float64,
	close  Float64,
	volume Float64
) ENGINE = ReplacingMergeTree ORDER BY (ticker, date)`, s.table)
	return s.conn.Exec(ctx, ddl)
}

// Save inserts s in one batch. ReplacingMergeTree collapses re-inserted dates.
func (s *ClickHouseStore) Save(ctx context.Context, series *model.Series) error {
	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO "+s.table)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, b := range series.Bars() {
		if err := batch.Append(series.Ticker, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("append %s %s: %w", series.Ticker, b.Date.Format(dateLayout), err)
		}
	}
	return batch.Send()
}

func (s *ClickHouseStore) Bars(ctx context.Context, ticker string) (*model.Series, error) {
	q := fmt.Sprintf(`SELECT date, open, high, low, close, volume FROM %s FINAL WHERE ticker = ? ORDER BY date`, s.table)
	rows, err := s.conn.Query(ctx, q, ticker)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrUnknownTicker)
	}
	return model.NewSeries(ticker, bars)
}

func (s *ClickHouseStore) Benchmark(ctx context.Context) (*model.Series, error) {
	return s.Bars(ctx, s.benchmark)
}

func (s *ClickHouseStore) Tickers(ctx context.Context) ([]string, error) {
	q := fmt.Sprintf(`SELECT DISTINCT ticker FROM %s WHERE ticker != ? ORDER BY ticker`, s.table)
	rows, err := s.conn.Query(ctx, q, s.benchmark)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
