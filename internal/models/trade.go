package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// ParseSide accepts "buy"/"sell" in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideBuy, nil
	case "sell":
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid side %q, expected Buy or Sell", s)
	}
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// TradeLogColumns is the fixed column order of the trade log table.
var TradeLogColumns = []string{
	"date", "timestamp", "symbol", "name", "side", "price",
	"quantity", "fee", "tax", "totalAmount", "note",
}

// TradeRecord is one row of the trade log.
// Fee, Tax and TotalAmount are derived and always filled in by the server.
type TradeRecord struct {
	Date        time.Time       `json:"date"`
	Timestamp   time.Time       `json:"timestamp"`
	Symbol      string          `json:"symbol"`
	Name        string          `json:"name"`
	Side        Side            `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int64           `json:"quantity"`
	Fee         int64           `json:"fee"`
	Tax         int64           `json:"tax"`
	TotalAmount int64           `json:"totalAmount"`
	Note        string          `json:"note,omitempty"`
}

// PriceDecimals is the number of decimal places a price is stored with.
const PriceDecimals = 2

// HasPricePrecision reports whether price is representable in a row unchanged.
func HasPricePrecision(price decimal.Decimal) bool {
	return price.Equal(price.Truncate(PriceDecimals))
}

// Row renders the record as cells in TradeLogColumns order.
func (r TradeRecord) Row() []string {
	return []string{
		r.Date.Format(DateLayout),
		r.Timestamp.Format(TimestampLayout),
		r.Symbol,
		r.Name,
		string(r.Side),
		r.Price.StringFixed(PriceDecimals),
		strconv.FormatInt(r.Quantity, 10),
		strconv.FormatInt(r.Fee, 10),
		strconv.FormatInt(r.Tax, 10),
		strconv.FormatInt(r.TotalAmount, 10),
		r.Note,
	}
}

// TradeLog is the full trade log table as last written.
// Rows stay as cells since rows added by other tools may not parse as records.
type TradeLog struct {
	Table   string     `json:"table"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Len returns the number of rows.
func (l *TradeLog) Len() int {
	return len(l.Rows)
}

// Tail returns the last n rows, or all rows when there are fewer.
func (l *TradeLog) Tail(n int) [][]string {
	if n <= 0 {
		return nil
	}
	if n >= len(l.Rows) {
		return l.Rows
	}
	return l.Rows[len(l.Rows)-n:]
}
