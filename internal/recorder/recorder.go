// Package recorder turns raw form input into a trade log row.
package recorder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"trade-recorder/internal/fees"
	"trade-recorder/internal/models"
	"trade-recorder/internal/tradelog"
)

// TradeInput is what the operator typed. It has no fee, tax
// or total fields: those are always derived here.
type TradeInput struct {
	Date      time.Time
	TimeOfDay time.Duration
	Symbol    string
	Name      string
	Side      models.Side
	Price     decimal.Decimal
	Quantity  int64
	Discount  *decimal.Decimal // nil keeps the configured discount
	Note      string
}

// Receipt is the outcome of a successful submission.
type Receipt struct {
	Record models.TradeRecord
	Fees   fees.Result
	Log    *models.TradeLog
}

// Appender persists one record and returns the updated table.
type Appender interface {
	Append(ctx context.Context, rec models.TradeRecord) (*models.TradeLog, error)
	Table() string
}

// Service validates, prices and records trades.
type Service struct {
	calc     *fees.Calculator
	appender Appender
	logger   *zap.Logger
	boardLot int64
}

func NewService(calc *fees.Calculator, appender Appender, logger *zap.Logger, boardLot int64) *Service {
	return &Service{
		calc:     calc,
		appender: appender,
		logger:   logger.Named("recorder"),
		boardLot: boardLot,
	}
}

// Table returns the name of the trade log table.
func (s *Service) Table() string {
	return s.appender.Table()
}

// Params returns the fee schedule used when the input carries no discount.
func (s *Service) Params() fees.Params {
	return s.calc.Params()
}

// Quote prices a trade without recording it.
func (s *Service) Quote(in TradeInput) (fees.Result, error) {
	in, err := normalize(in)
	if err != nil {
		return fees.Result{}, err
	}
	return s.compute(in)
}

// Submit validates the input, derives fee, tax and total, and appends the
// record to the trade log.
func (s *Service) Submit(ctx context.Context, in TradeInput) (*Receipt, error) {
	in, err := normalize(in)
	if err != nil {
		s.logger.Info("Rejected trade input", zap.Error(err))
		return nil, err
	}

	result, err := s.compute(in)
	if err != nil {
		return nil, err
	}

	if !fees.IsBoardLot(in.Quantity, s.boardLot) {
		s.logger.Warn("Odd-lot quantity",
			zap.String("symbol", in.Symbol),
			zap.Int64("quantity", in.Quantity),
			zap.Int64("board_lot", s.boardLot),
		)
	}

	date := time.Date(in.Date.Year(), in.Date.Month(), in.Date.Day(), 0, 0, 0, 0, in.Date.Location())
	rec := models.TradeRecord{
		Date:        date,
		Timestamp:   date.Add(in.TimeOfDay),
		Symbol:      in.Symbol,
		Name:        in.Name,
		Side:        in.Side,
		Price:       in.Price,
		Quantity:    in.Quantity,
		Fee:         result.Fee,
		Tax:         result.Tax,
		TotalAmount: result.Total,
		Note:        in.Note,
	}

	log, err := s.appender.Append(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &Receipt{Record: rec, Fees: result, Log: log}, nil
}

func (s *Service) compute(in TradeInput) (fees.Result, error) {
	calc := s.calc
	if in.Discount != nil {
		var err error
		if calc, err = calc.WithDiscount(*in.Discount); err != nil {
			return fees.Result{}, fmt.Errorf("apply discount: %w", err)
		}
	}
	return calc.Compute(in.Price, in.Quantity, in.Side)
}

// normalize trims free text and applies the same checks, in the same
// order, as the form does.
func normalize(in TradeInput) (TradeInput, error) {
	in.Symbol = strings.TrimSpace(in.Symbol)
	in.Name = strings.TrimSpace(in.Name)
	in.Note = strings.TrimSpace(in.Note)

	if in.Symbol == "" || in.Name == "" {
		return in, tradelog.NewValidationError("symbol and name are required")
	}
	if !in.Price.IsPositive() || in.Quantity <= 0 {
		return in, tradelog.NewValidationError("price and quantity must be greater than 0")
	}
	if !models.HasPricePrecision(in.Price) {
		return in, tradelog.NewValidationError("price must have at most 2 decimal places")
	}
	if !in.Side.Valid() {
		return in, tradelog.NewValidationError("side must be Buy or Sell")
	}
	if in.Date.IsZero() {
		return in, tradelog.NewValidationError("trade date is required")
	}
	if in.TimeOfDay < 0 || in.TimeOfDay >= 24*time.Hour {
		return in, tradelog.NewValidationError("trade time must be within the day")
	}
	if in.Discount != nil && (in.Discount.IsNegative() || in.Discount.GreaterThan(decimal.NewFromInt(1))) {
		return in, tradelog.NewValidationError("fee discount must be between 0 and 1")
	}
	return in, nil
}
