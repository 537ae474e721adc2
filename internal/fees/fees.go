// Package fees computes brokerage fees, transaction tax and settlement
// amounts for a single stock trade.
package fees

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"trade-recorder/internal/config"
	"trade-recorder/internal/models"
)

// ErrInvalidArgument is returned for non-positive prices or quantities and
// for out-of-range fee parameters.
var ErrInvalidArgument = errors.New("invalid argument")

var (
	one       = decimal.NewFromInt(1)
	zero      = decimal.Zero
	maxAmount = decimal.NewFromInt(math.MaxInt64)
)

// Params is a broker fee schedule.
type Params struct {
	FeeRate    decimal.Decimal // brokerage rate, 0.1425%
	TaxRate    decimal.Decimal // transaction tax, charged on sells only
	Discount   decimal.Decimal // broker rebate applied to the brokerage fee
	MinimumFee int64           // floor for the brokerage fee
}

// DefaultParams returns the common retail schedule.
func DefaultParams() Params {
	return Params{
		FeeRate:    decimal.RequireFromString("0.001425"),
		TaxRate:    decimal.RequireFromString("0.003"),
		Discount:   decimal.RequireFromString("0.6"),
		MinimumFee: 20,
	}
}

// ParamsFromConfig parses the configured schedule. Rates are kept as strings
// in config so they never pass through a float.
func ParamsFromConfig(cfg *config.Fees) (Params, error) {
	var p Params
	var err error
	if p.FeeRate, err = decimal.NewFromString(cfg.FeeRate); err != nil {
		return p, fmt.Errorf("%w: fee rate %q", ErrInvalidArgument, cfg.FeeRate)
	}
	if p.TaxRate, err = decimal.NewFromString(cfg.TaxRate); err != nil {
		return p, fmt.Errorf("%w: tax rate %q", ErrInvalidArgument, cfg.TaxRate)
	}
	if p.Discount, err = decimal.NewFromString(cfg.Discount); err != nil {
		return p, fmt.Errorf("%w: discount %q", ErrInvalidArgument, cfg.Discount)
	}
	p.MinimumFee = cfg.MinimumFee
	return p, p.Validate()
}

// Validate checks the rates are within their domains.
func (p Params) Validate() error {
	if !p.FeeRate.GreaterThan(zero) || !p.FeeRate.LessThan(one) {
		return fmt.Errorf("%w: fee rate %s must be in (0,1)", ErrInvalidArgument, p.FeeRate)
	}
	if !p.TaxRate.GreaterThan(zero) || !p.TaxRate.LessThan(one) {
		return fmt.Errorf("%w: tax rate %s must be in (0,1)", ErrInvalidArgument, p.TaxRate)
	}
	if p.Discount.LessThan(zero) || p.Discount.GreaterThan(one) {
		return fmt.Errorf("%w: discount %s must be in [0,1]", ErrInvalidArgument, p.Discount)
	}
	if p.MinimumFee < 0 {
		return fmt.Errorf("%w: minimum fee %d must not be negative", ErrInvalidArgument, p.MinimumFee)
	}
	return nil
}

// Result holds the derived amounts, in whole currency units.
type Result struct {
	Fee   int64 `json:"fee"`
	Tax   int64 `json:"tax"`
	Total int64 `json:"total"` // cost for a buy, net proceeds for a sell
}

// Compute derives fee, tax and total for one trade.
// Every amount is truncated toward zero, never rounded.
func Compute(price decimal.Decimal, quantity int64, side models.Side, p Params) (Result, error) {
	if !price.IsPositive() {
		return Result{}, fmt.Errorf("%w: price %s must be positive", ErrInvalidArgument, price)
	}
	if quantity <= 0 {
		return Result{}, fmt.Errorf("%w: quantity %d must be positive", ErrInvalidArgument, quantity)
	}
	if !side.Valid() {
		return Result{}, fmt.Errorf("%w: side %q", ErrInvalidArgument, side)
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	gross := price.Mul(decimal.NewFromInt(quantity))
	if gross.GreaterThan(maxAmount) {
		return Result{}, fmt.Errorf("%w: trade amount %s is too large", ErrInvalidArgument, gross)
	}

	fee := gross.Mul(p.FeeRate).Mul(p.Discount).IntPart()
	if fee < p.MinimumFee {
		fee = p.MinimumFee
	}

	// A sell total stays in range since tax never exceeds gross.
	grossAmount := gross.IntPart()
	if side == models.SideSell {
		tax := gross.Mul(p.TaxRate).IntPart()
		return Result{Fee: fee, Tax: tax, Total: grossAmount - fee - tax}, nil
	}
	if grossAmount > math.MaxInt64-fee {
		return Result{}, fmt.Errorf("%w: trade amount %s is too large", ErrInvalidArgument, gross)
	}
	return Result{Fee: fee, Tax: 0, Total: grossAmount + fee}, nil
}

// IsBoardLot reports whether quantity is a whole number of lots.
// A lot of zero or less disables the check.
func IsBoardLot(quantity, lot int64) bool {
	if lot <= 0 {
		return true
	}
	return quantity%lot == 0
}

// Calculator applies a fixed fee schedule.
type Calculator struct {
	params Params
}

// NewCalculator validates the schedule up front so Compute only fails on
// bad trade input.
func NewCalculator(p Params) (*Calculator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{params: p}, nil
}

// Params returns the schedule in use.
func (c *Calculator) Params() Params {
	return c.params
}

// WithDiscount returns a calculator with the brokerage discount replaced.
func (c *Calculator) WithDiscount(discount decimal.Decimal) (*Calculator, error) {
	p := c.params
	p.Discount = discount
	return NewCalculator(p)
}

func (c *Calculator) Compute(price decimal.Decimal, quantity int64, side models.Side) (Result, error) {
	return Compute(price, quantity, side, c.params)
}
