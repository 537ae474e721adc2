// Package tradelog appends trade records to the trade log table.
package tradelog

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"trade-recorder/internal/metrics"
	"trade-recorder/internal/models"
	"trade-recorder/internal/store"
)

// DefaultTable is the name of the trade log table.
const DefaultTable = "trade_log"

// Options tunes the read-modify-write cycle.
type Options struct {
	Table              string
	Timeout            time.Duration // bound on the whole append, reads and writes included
	MaxConflictRetries int
	ConflictBackoff    time.Duration // grows linearly with each conflict
}

func (o Options) withDefaults() Options {
	if o.Table == "" {
		o.Table = DefaultTable
	}
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.MaxConflictRetries < 0 {
		o.MaxConflictRetries = 0
	}
	if o.ConflictBackoff <= 0 {
		o.ConflictBackoff = 200 * time.Millisecond
	}
	return o
}

// Writer appends records to the trade log by reading the whole table,
// adding one row and writing the table back under a version check.
type Writer struct {
	store  store.TableStore
	logger *zap.Logger
	opts   Options
}

func NewWriter(s store.TableStore, logger *zap.Logger, opts Options) *Writer {
	return &Writer{
		store:  s,
		logger: logger.Named("tradelog"),
		opts:   opts.withDefaults(),
	}
}

// Table returns the name of the table records are appended to.
func (w *Writer) Table() string {
	return w.opts.Table
}

// Validate checks the caller-supplied fields of a record.
func Validate(rec models.TradeRecord) error {
	if strings.TrimSpace(rec.Symbol) == "" || strings.TrimSpace(rec.Name) == "" {
		return NewValidationError("symbol and name are required")
	}
	if !rec.Price.IsPositive() || rec.Quantity <= 0 {
		return NewValidationError("price and quantity must be greater than 0")
	}
	if !models.HasPricePrecision(rec.Price) {
		return NewValidationError("price must have at most 2 decimal places")
	}
	return nil
}

// Append adds rec as the last row of the trade log and returns the table
// as written. A missing table is treated as empty and created by the write.
// Append is not idempotent: the same record appended twice gives two rows.
func (w *Writer) Append(ctx context.Context, rec models.TradeRecord) (*models.TradeLog, error) {
	if err := Validate(rec); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()

	l := w.logger.With(
		zap.String("table", w.opts.Table),
		zap.String("symbol", rec.Symbol),
		zap.String("side", string(rec.Side)),
	)
	row := rec.Row()

	for attempt := 0; ; attempt++ {
		base, err := w.readBase(ctx, l)
		if err != nil {
			return nil, err
		}

		rows := make([][]string, 0, len(base.Rows)+1)
		rows = append(rows, base.Rows...)
		rows = append(rows, row)
		merged := &store.Table{
			Columns: append([]string(nil), models.TradeLogColumns...),
			Rows:    rows,
			Version: base.Version,
		}

		err = w.store.Write(ctx, w.opts.Table, merged)
		if err == nil {
			metrics.TradesRecorded.WithLabelValues(string(rec.Side)).Inc()
			l.Info("Trade recorded", zap.Int("rows", len(rows)), zap.Int("attempts", attempt+1))
			return &models.TradeLog{Table: w.opts.Table, Columns: merged.Columns, Rows: rows}, nil
		}

		if !errors.Is(err, store.ErrVersionConflict) {
			uncertain := writeOutcomeUnknown(err)
			l.Error("Failed to write trade log", zap.Bool("uncertain", uncertain), zap.Error(err))
			return nil, &StoreUnavailableError{Table: w.opts.Table, Op: OpWrite, Err: err, Uncertain: uncertain}
		}

		metrics.VersionConflicts.Inc()
		if attempt >= w.opts.MaxConflictRetries {
			l.Error("Trade log kept changing underneath us, giving up", zap.Int("attempts", attempt+1))
			return nil, &StoreUnavailableError{Table: w.opts.Table, Op: OpWrite, Err: err}
		}

		wait := w.opts.ConflictBackoff * time.Duration(attempt+1)
		l.Warn("Trade log changed since it was read, retrying", zap.Int("attempt", attempt+1), zap.Duration("retry_after", wait))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, &StoreUnavailableError{Table: w.opts.Table, Op: OpWrite, Err: ctx.Err()}
		}
	}
}

// readBase reads the current table fresh from the store.
func (w *Writer) readBase(ctx context.Context, l *zap.Logger) (*store.Table, error) {
	tbl, err := w.store.Read(ctx, w.opts.Table, models.TradeLogColumns)
	switch {
	case errors.Is(err, store.ErrTableNotFound):
		l.Warn("Trade log table not found, starting from an empty table")
		return &store.Table{Columns: models.TradeLogColumns}, nil
	case err != nil:
		l.Error("Failed to read trade log", zap.Error(err))
		return nil, &StoreUnavailableError{Table: w.opts.Table, Op: OpRead, Err: err}
	}

	if tbl.IsEmpty() {
		l.Debug("Trade log is empty")
	}
	return tbl, nil
}
