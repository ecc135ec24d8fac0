package data

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Source kinds accepted by Open.
const (
	SourceArrow      = "arrow"
	SourceAPI        = "api"
	SourceClickHouse = "clickhouse"
)

// SourceOptions selects and configures a Provider.
type SourceOptions struct {
	Kind      string
	Benchmark string

	CacheDir string

	APIURL string
	APIKey string

	ClickHouse ClickHouseOptions
}

// SourceOptionsFromEnv reads DATA_SOURCE, CACHE_DIR, BARS_API_URL,
// BARS_API_KEY and CLICKHOUSE_ADDR/DB/USER/PASSWORD. Empty values keep
// the given defaults.
func SourceOptionsFromEnv(defaults SourceOptions) SourceOptions {
	o := defaults
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&o.Kind, "DATA_SOURCE")
	set(&o.CacheDir, "CACHE_DIR")
	set(&o.APIURL, "BARS_API_URL")
	set(&o.APIKey, "BARS_API_KEY")
	set(&o.ClickHouse.Addr, "CLICKHOUSE_ADDR")
	set(&o.ClickHouse.Database, "CLICKHOUSE_DB")
	set(&o.ClickHouse.Username, "CLICKHOUSE_USER")
	set(&o.ClickHouse.Password, "CLICKHOUSE_PASSWORD")
	set(&o.ClickHouse.Table, "CLICKHOUSE_TABLE")
	return o
}

// Open builds the Provider named by opts.Kind. The returned close func
// releases its resources and is never nil.
func Open(ctx context.Context, opts SourceOptions, logger *zap.Logger) (Provider, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(opts.Kind) {
	case "", SourceArrow:
		if opts.CacheDir == "" {
			return nil, noop, fmt.Errorf("cache dir is required for the %s source", SourceArrow)
		}
		return NewArrowCache(opts.CacheDir, opts.Benchmark), noop, nil
	case SourceAPI:
		c := NewBarsClient(opts.APIKey, opts.APIURL, opts.Benchmark, logger)
		if err := c.validateAPIKey(); err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case SourceClickHouse:
		ch := opts.ClickHouse
		if ch.Addr == "" {
			ch.Addr = "localhost:9000"
		}
		ch.Benchmark = opts.Benchmark
		store, err := OpenClickHouse(ctx, ch)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown data source %q (want %s, %s or %s)", opts.Kind, SourceArrow, SourceAPI, SourceClickHouse)
	}
}
