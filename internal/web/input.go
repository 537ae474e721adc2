package web

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"trade-recorder/internal/models"
	"trade-recorder/internal/recorder"
	"trade-recorder/internal/tradelog"
)

const timeOfDayLayout = "15:04"

var invalidDiscount = decimal.NewFromInt(-1)

// tradeRequest is the JSON body of /api/trades and /api/quote.
// Fee, tax and total are derived server-side, so there are no fields for them.
type tradeRequest struct {
	Date         string           `json:"date"`
	Time         string           `json:"time"`
	Symbol       string           `json:"symbol"`
	Name         string           `json:"name"`
	Side         string           `json:"side"`
	Price        decimal.Decimal  `json:"price"`
	Quantity     int64            `json:"quantity"`
	Discount     *decimal.Decimal `json:"discount,omitempty"`
	Note         string           `json:"note"`
	SubmissionID string           `json:"submission_id"`
}

// formValues are the raw form fields, kept as typed so the form can be
// redisplayed unchanged after a warning.
type formValues struct {
	Date     string
	Time     string
	Symbol   string
	Name     string
	Side     string
	Price    string
	Quantity string
	Discount string
	Note     string
}

func defaultFormValues(now time.Time, discount decimal.Decimal) formValues {
	return formValues{
		Date:     now.Format(models.DateLayout),
		Time:     now.Format(timeOfDayLayout),
		Side:     string(models.SideBuy),
		Quantity: "1000",
		Discount: discount.String(),
	}
}

func readFormValues(r *http.Request) formValues {
	return formValues{
		Date:     r.PostFormValue("date"),
		Time:     r.PostFormValue("time"),
		Symbol:   r.PostFormValue("symbol"),
		Name:     r.PostFormValue("name"),
		Side:     r.PostFormValue("side"),
		Price:    r.PostFormValue("price"),
		Quantity: r.PostFormValue("quantity"),
		Discount: r.PostFormValue("discount"),
		Note:     r.PostFormValue("note"),
	}
}

// toRequest converts form text into a tradeRequest. An unparseable number
// is passed on as an invalid value so the recorder reports it in its usual
// order: a bad price or quantity reads as missing, a bad discount as out of range.
func (v formValues) toRequest() tradeRequest {
	req := tradeRequest{
		Date:   v.Date,
		Time:   v.Time,
		Symbol: v.Symbol,
		Name:   v.Name,
		Side:   v.Side,
		Note:   v.Note,
	}

	if price, err := decimal.NewFromString(strings.TrimSpace(v.Price)); err == nil {
		req.Price = price
	}
	if quantity, err := strconv.ParseInt(strings.TrimSpace(v.Quantity), 10, 64); err == nil {
		req.Quantity = quantity
	}
	if s := strings.TrimSpace(v.Discount); s != "" {
		discount, err := decimal.NewFromString(s)
		if err != nil {
			discount = invalidDiscount
		}
		req.Discount = &discount
	}
	return req
}

// toInput parses the date, time and side. A missing date or time means now.
func (req tradeRequest) toInput(now time.Time) (recorder.TradeInput, error) {
	in := recorder.TradeInput{
		Symbol:   req.Symbol,
		Name:     req.Name,
		Price:    req.Price,
		Quantity: req.Quantity,
		Discount: req.Discount,
		Note:     req.Note,
	}

	in.Date = now
	if s := strings.TrimSpace(req.Date); s != "" {
		date, err := time.ParseInLocation(models.DateLayout, s, now.Location())
		if err != nil {
			return in, tradelog.NewValidationError("trade date must be YYYY-MM-DD")
		}
		in.Date = date
	}

	in.TimeOfDay = time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute
	if s := strings.TrimSpace(req.Time); s != "" {
		tod, err := parseTimeOfDay(s)
		if err != nil {
			return in, err
		}
		in.TimeOfDay = tod
	}

	// An unknown side is passed through and rejected by the recorder, after
	// the symbol and price checks.
	in.Side = models.Side(req.Side)
	if side, err := models.ParseSide(req.Side); err == nil {
		in.Side = side
	}
	return in, nil
}

func parseTimeOfDay(s string) (time.Duration, error) {
	for _, layout := range []string{timeOfDayLayout, "15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, tradelog.NewValidationError("trade time must be HH:MM")
}
