package backtest

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"momentum-backtest/internal/model"
)

const dateLayout = "2006-01-02"

// WriteEquityCSV writes one row per snapshot to path.
func WriteEquityCSV(path string, curve []model.DailySnapshot) error {
	return writeFile(path, func(w io.Writer) error { return WriteEquity(w, curve) })
}

// WriteTradesCSV writes one row per completed trade to path.
func WriteTradesCSV(path string, trades []model.TradeRecord) error {
	return writeFile(path, func(w io.Writer) error { return WriteTrades(w, trades) })
}

func WriteEquity(out io.Writer, curve []model.DailySnapshot) error {
	w := csv.NewWriter(out)
	header := []string{
		"date",
		"cash",
		"positions_value",
		"account_value",
		"num_positions",
		"regime_bullish",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range EquityRows(curve) {
		row := []string{
			fmtDate(r.Date),
			fmtMoney(r.Cash),
			fmtMoney(r.PositionsValue),
			fmtMoney(r.AccountValue),
			strconv.Itoa(r.NumPositions),
			strconv.FormatBool(r.RegimeBullish),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func WriteTrades(out io.Writer, trades []model.TradeRecord) error {
	w := csv.NewWriter(out)
	header := []string{
		"ticker",
		"sector",
		"entry_date",
		"exit_date",
		"entry_price",
		"exit_price",
		"shares",
		"stop_loss",
		"atr",
		"exit_reason",
		"pnl",
		"pnl_pct",
		"holding_days",
		"winner",
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range TradeRows(trades) {
		row := []string{
			r.Ticker,
			r.Sector,
			fmtDate(r.EntryDate),
			fmtDate(r.ExitDate),
			fmtPrice(r.EntryPrice),
			fmtPrice(r.ExitPrice),
			strconv.Itoa(r.Shares),
			fmtPrice(r.StopLoss),
			fmtPrice(r.ATR),
			string(r.ExitReason),
			fmtMoney(r.PnL),
			fmtFloat(r.PnLPct),
			strconv.Itoa(r.HoldingDays),
			strconv.FormatBool(r.Winner),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// Money columns are rounded to cents, prices to 4 places.
func fmtMoney(x float64) string { return fmtFixed(x, 2) }

func fmtPrice(x float64) string { return fmtFixed(x, 4) }

func fmtFixed(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return ""
	}
	return decimal.NewFromFloat(x).StringFixed(places)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
