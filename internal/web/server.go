package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"trade-recorder/internal/fees"
	"trade-recorder/internal/recorder"
)

//go:embed templates/*.html
var templateFS embed.FS

const tokenTTL = time.Hour

// TradeService is the part of recorder.Service the handlers need.
type TradeService interface {
	Submit(ctx context.Context, in recorder.TradeInput) (*recorder.Receipt, error)
	Quote(in recorder.TradeInput) (fees.Result, error)
	Params() fees.Params
	Table() string
}

// Options are the page settings chosen at startup.
type Options struct {
	Port        int
	Title       string
	Icon        string
	PreviewRows int
}

// Server serves the trade form and its JSON API.
type Server struct {
	server  *http.Server
	service TradeService
	logger  *zap.Logger
	opts    Options
	tokens  *tokenGuard
	form    *template.Template
	now     func() time.Time
}

// NewServer creates a Server. Nothing listens until Start.
func NewServer(service TradeService, logger *zap.Logger, opts Options) (*Server, error) {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = 3
	}
	form, err := template.ParseFS(templateFS, "templates/form.html")
	if err != nil {
		return nil, fmt.Errorf("parse form template: %w", err)
	}

	s := &Server{
		service: service,
		logger:  logger.Named("web"),
		opts:    opts,
		tokens:  newTokenGuard(tokenTTL),
		form:    form,
		now:     time.Now,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /{$}", s.handleFormSubmit)
	mux.HandleFunc("POST /api/trades", s.handleCreateTrade)
	mux.HandleFunc("POST /api/quote", s.handleQuote)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting web server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping web server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}
