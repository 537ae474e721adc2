package recorder

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"trade-recorder/internal/config"
	"trade-recorder/internal/database"
	"trade-recorder/internal/fees"
	"trade-recorder/internal/models"
	"trade-recorder/internal/store"
	"trade-recorder/internal/tradelog"
)

// MockAppender is a mock implementation of the Appender interface.
type MockAppender struct {
	mock.Mock
}

func (m *MockAppender) Append(ctx context.Context, rec models.TradeRecord) (*models.TradeLog, error) {
	args := m.Called(ctx, rec)
	log, _ := args.Get(0).(*models.TradeLog)
	return log, args.Error(1)
}

func (m *MockAppender) Table() string {
	return tradelog.DefaultTable
}

func newCalculator(t *testing.T) *fees.Calculator {
	calc, err := fees.NewCalculator(fees.DefaultParams())
	require.NoError(t, err)
	return calc
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleInput() TradeInput {
	return TradeInput{
		Date:      time.Date(2025, 11, 24, 15, 4, 5, 0, time.UTC),
		TimeOfDay: 10*time.Hour + 15*time.Minute,
		Symbol:    " 2330 ",
		Name:      "TSMC",
		Side:      models.SideSell,
		Price:     dec("100.00"),
		Quantity:  1000,
		Note:      "take profit ",
	}
}

func TestService_Submit(t *testing.T) {
	appender := new(MockAppender)
	svc := NewService(newCalculator(t), appender, zap.NewNop(), 1000)

	expected := models.TradeRecord{
		Date:        time.Date(2025, 11, 24, 0, 0, 0, 0, time.UTC),
		Timestamp:   time.Date(2025, 11, 24, 10, 15, 0, 0, time.UTC),
		Symbol:      "2330",
		Name:        "TSMC",
		Side:        models.SideSell,
		Price:       dec("100.00"),
		Quantity:    1000,
		Fee:         85,
		Tax:         300,
		TotalAmount: 99615,
		Note:        "take profit",
	}
	tradeLog := &models.TradeLog{Table: tradelog.DefaultTable, Columns: models.TradeLogColumns, Rows: [][]string{expected.Row()}}
	appender.On("Append", mock.Anything, expected).Return(tradeLog, nil)

	receipt, err := svc.Submit(context.Background(), sampleInput())

	require.NoError(t, err)
	assert.Equal(t, expected, receipt.Record)
	assert.Equal(t, fees.Result{Fee: 85, Tax: 300, Total: 99615}, receipt.Fees)
	assert.Same(t, tradeLog, receipt.Log)
	appender.AssertExpectations(t)
}

func TestService_SubmitUsesDiscount(t *testing.T) {
	appender := new(MockAppender)
	svc := NewService(newCalculator(t), appender, zap.NewNop(), 1000)

	in := sampleInput()
	in.Side = models.SideBuy
	full := dec("1")
	in.Discount = &full

	appender.On("Append", mock.Anything, mock.MatchedBy(func(rec models.TradeRecord) bool {
		return rec.Fee == 142 && rec.Tax == 0 && rec.TotalAmount == 100142
	})).Return(&models.TradeLog{}, nil)

	_, err := svc.Submit(context.Background(), in)

	require.NoError(t, err)
	appender.AssertExpectations(t)
}

func TestService_SubmitValidation(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(in *TradeInput)
		msg    string
	}{
		{"Blank symbol", func(in *TradeInput) { in.Symbol = "  " }, "symbol and name are required"},
		{"Missing name", func(in *TradeInput) { in.Name = "" }, "symbol and name are required"},
		{"Name checked before price", func(in *TradeInput) { in.Name = ""; in.Price = decimal.Zero }, "symbol and name are required"},
		{"Zero price", func(in *TradeInput) { in.Price = decimal.Zero }, "price and quantity must be greater than 0"},
		{"Zero quantity", func(in *TradeInput) { in.Quantity = 0 }, "price and quantity must be greater than 0"},
		{"Sub-cent price", func(in *TradeInput) { in.Price = dec("10.005") }, "price must have at most 2 decimal places"},
		{"Bad side", func(in *TradeInput) { in.Side = "Hold" }, "side must be Buy or Sell"},
		{"No date", func(in *TradeInput) { in.Date = time.Time{} }, "trade date is required"},
		{"Time past midnight", func(in *TradeInput) { in.TimeOfDay = 25 * time.Hour }, "trade time must be within the day"},
		{"Discount above one", func(in *TradeInput) { d := dec("1.5"); in.Discount = &d }, "fee discount must be between 0 and 1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			appender := new(MockAppender)
			svc := NewService(newCalculator(t), appender, zap.NewNop(), 1000)
			in := sampleInput()
			tc.mutate(&in)

			receipt, err := svc.Submit(context.Background(), in)

			assert.Nil(t, receipt)
			assert.True(t, tradelog.IsValidationError(err))
			assert.EqualError(t, err, tc.msg)
			appender.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		})
	}
}

func TestService_SubmitStoreFailure(t *testing.T) {
	appender := new(MockAppender)
	svc := NewService(newCalculator(t), appender, zap.NewNop(), 1000)

	storeErr := &tradelog.StoreUnavailableError{Table: tradelog.DefaultTable, Op: tradelog.OpRead, Err: fmt.Errorf("connection refused")}
	appender.On("Append", mock.Anything, mock.Anything).Return(nil, storeErr)

	_, err := svc.Submit(context.Background(), sampleInput())

	assert.True(t, tradelog.IsStoreUnavailable(err))
}

func TestService_Quote(t *testing.T) {
	appender := new(MockAppender)
	svc := NewService(newCalculator(t), appender, zap.NewNop(), 1000)

	in := sampleInput()
	in.Side = models.SideBuy
	in.Price = dec("1.00")
	in.Quantity = 100

	result, err := svc.Quote(in)

	require.NoError(t, err)
	assert.Equal(t, fees.Result{Fee: 20, Tax: 0, Total: 120}, result)
	appender.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)

	in.Symbol = ""
	_, err = svc.Quote(in)
	assert.True(t, tradelog.IsValidationError(err))
}

func TestService_EndToEnd(t *testing.T) {
	db, err := database.NewDatabase(&config.Database{DSN: "file:recorder_e2e?mode=memory&cache=shared"})
	require.NoError(t, err)
	writer := tradelog.NewWriter(store.NewSQLiteStore(db, zap.NewNop()), zap.NewNop(), tradelog.Options{})
	svc := NewService(newCalculator(t), writer, zap.NewNop(), 1000)

	first, err := svc.Submit(context.Background(), sampleInput())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Log.Len())

	odd := sampleInput()
	odd.Side = models.SideBuy
	odd.Quantity = 150
	second, err := svc.Submit(context.Background(), odd)
	require.NoError(t, err)

	require.Equal(t, 2, second.Log.Len())
	assert.Equal(t, first.Record.Row(), second.Log.Rows[0])
	assert.Equal(t, second.Record.Row(), second.Log.Rows[1])
	assert.Equal(t, "Buy", second.Log.Rows[1][4])
	assert.Equal(t, "150", second.Log.Rows[1][6])
}
