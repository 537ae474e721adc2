package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"trade-recorder/internal/fees"
	"trade-recorder/internal/metrics"
	"trade-recorder/internal/models"
	"trade-recorder/internal/recorder"
	"trade-recorder/internal/tradelog"
)

const (
	flashSuccess = "success"
	flashWarning = "warning"
	flashError   = "error"
)

type flash struct {
	Kind    string
	Message string
	Detail  string
}

// formView is the data behind templates/form.html.
type formView struct {
	Title   string
	Icon    string
	Token   string
	Values  formValues
	Sides   []models.Side
	Flash   *flash
	Table   string
	Columns []string
	Preview [][]string
}

func (s *Server) newFormView(token string, values formValues) *formView {
	return &formView{
		Title:  s.opts.Title,
		Icon:   s.opts.Icon,
		Token:  token,
		Values: values,
		Sides:  []models.Side{models.SideBuy, models.SideSell},
		Table:  s.service.Table(),
	}
}

func (s *Server) render(w http.ResponseWriter, status int, view *formView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.form.Execute(w, view); err != nil {
		s.logger.Error("Failed to render form", zap.Error(err))
	}
}

func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	values := defaultFormValues(s.now(), s.service.Params().Discount)
	s.render(w, http.StatusOK, s.newFormView(s.tokens.Issue(), values))
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	values := readFormValues(r)
	token := r.PostFormValue("token")

	if !s.tokens.Reserve(token) {
		metrics.SubmissionsRejected.WithLabelValues("duplicate").Inc()
		view := s.newFormView(s.tokens.Issue(), defaultFormValues(s.now(), s.service.Params().Discount))
		view.Flash = &flash{Kind: flashWarning, Message: "This form was already submitted. Check the latest rows before entering the trade again."}
		s.render(w, http.StatusConflict, view)
		return
	}

	receipt, err := s.submit(r, values.toRequest())
	if err != nil {
		s.releaseToken(token, err)
		view := s.newFormView(token, values)
		status, f := s.describe(err)
		view.Flash = f
		s.render(w, status, view)
		return
	}

	// Entered values stay filled in for the next trade.
	view := s.newFormView(s.tokens.Issue(), values)
	view.Flash = successFlash(receipt)
	view.Columns = receipt.Log.Columns
	view.Preview = receipt.Log.Tail(s.opts.PreviewRows)
	s.render(w, http.StatusOK, view)
}

type tradeResponse struct {
	Record models.TradeRecord `json:"record"`
	Fees   fees.Result        `json:"fees"`
	Table  string             `json:"table"`
	Rows   int                `json:"rows"`
	Recent [][]string         `json:"recent"`
}

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !s.tokens.Reserve(req.SubmissionID) {
		metrics.SubmissionsRejected.WithLabelValues("duplicate").Inc()
		writeError(w, http.StatusConflict, "submission already received")
		return
	}

	receipt, err := s.submit(r, req)
	if err != nil {
		s.releaseToken(req.SubmissionID, err)
		status, f := s.describe(err)
		writeJSON(w, status, map[string]string{"error": f.Message, "hint": f.Detail})
		return
	}

	writeJSON(w, http.StatusCreated, tradeResponse{
		Record: receipt.Record,
		Fees:   receipt.Fees,
		Table:  receipt.Log.Table,
		Rows:   receipt.Log.Len(),
		Recent: receipt.Log.Tail(s.opts.PreviewRows),
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in, err := req.toInput(s.now())
	if err == nil {
		var result fees.Result
		if result, err = s.service.Quote(in); err == nil {
			writeJSON(w, http.StatusOK, result)
			return
		}
	}

	status, f := s.describe(err)
	writeError(w, status, f.Message)
}

// submit runs one submission. The request context is detached from
// cancellation so a client that disconnects does not abort a write half way.
func (s *Server) submit(r *http.Request, req tradeRequest) (*recorder.Receipt, error) {
	in, err := req.toInput(s.now())
	if err != nil {
		return nil, err
	}
	return s.service.Submit(context.WithoutCancel(r.Context()), in)
}

// releaseToken frees the token of a failed submission so the corrected form
// can be sent again. A write that may have gone through keeps its token, so
// resending the same form is refused as a duplicate.
func (s *Server) releaseToken(token string, err error) {
	var storeErr *tradelog.StoreUnavailableError
	if errors.As(err, &storeErr) && storeErr.Uncertain {
		s.logger.Warn("Write outcome unknown, keeping submission token", zap.String("table", storeErr.Table))
		return
	}
	s.tokens.Release(token)
}

// describe maps an error to a status code and an operator-facing message.
func (s *Server) describe(err error) (int, *flash) {
	var storeErr *tradelog.StoreUnavailableError
	switch {
	case tradelog.IsValidationError(err):
		metrics.SubmissionsRejected.WithLabelValues("validation").Inc()
		return http.StatusUnprocessableEntity, &flash{Kind: flashWarning, Message: err.Error()}
	case errors.As(err, &storeErr):
		metrics.SubmissionsRejected.WithLabelValues("store").Inc()
		return http.StatusBadGateway, &flash{
			Kind:    flashError,
			Message: fmt.Sprintf("Failed to save the trade: %v", storeErr.Err),
			Detail:  storeErr.Hint(),
		}
	case errors.Is(err, fees.ErrInvalidArgument):
		metrics.SubmissionsRejected.WithLabelValues("validation").Inc()
		return http.StatusUnprocessableEntity, &flash{Kind: flashWarning, Message: err.Error()}
	default:
		metrics.SubmissionsRejected.WithLabelValues("internal").Inc()
		s.logger.Error("Unexpected submission error", zap.Error(err))
		return http.StatusInternalServerError, &flash{Kind: flashError, Message: "Failed to save the trade."}
	}
}

func successFlash(receipt *recorder.Receipt) *flash {
	rec := receipt.Record
	return &flash{
		Kind:    flashSuccess,
		Message: fmt.Sprintf("Recorded %s of %s (%s).", rec.Side, rec.Name, rec.Symbol),
		Detail:  fmt.Sprintf("Fee %d, tax %d, total %d.", rec.Fee, rec.Tax, rec.TotalAmount),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
