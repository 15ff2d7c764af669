package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"pricehistory-extractor/extractor"
	"pricehistory-extractor/internal/config"
	"pricehistory-extractor/internal/database"
	"pricehistory-extractor/internal/types"
	"pricehistory-extractor/utils"
)

// maxRequestBody caps the size of an /extract request body
const maxRequestBody = 1 << 20

// APIRequest represents the request body for the API
type APIRequest struct {
	Symbols []string `json:"symbols"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RunView is a ledger run with its outcomes
type RunView struct {
	database.Run
	Outcomes []database.Outcome `json:"outcomes"`
}

// SessionFactory creates the browser session for one extraction request
type SessionFactory func(config *types.Config, logger types.Logger) types.Session

// Server holds the API server configuration
type Server struct {
	logger     *logrus.Logger
	config     *types.Config
	ledger     *database.RunDB
	newSession SessionFactory

	// one browser-driven run at a time
	runMu     sync.Mutex
	closeOnce sync.Once
}

// NewServer creates a new API server. ledger may be nil.
func NewServer(config *types.Config, logger *logrus.Logger, ledger *database.RunDB, newSession SessionFactory) *Server {
	if newSession == nil {
		newSession = func(config *types.Config, logger types.Logger) types.Session {
			return utils.NewBrowserSession(config, logger)
		}
	}
	return &Server{
		logger:     logger,
		config:     config,
		ledger:     ledger,
		newSession: newSession,
	}
}

// Handler returns the API routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/runs", s.handleRuns)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// handleExtract handles the extraction API endpoint
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Set CORS headers
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req APIRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendError(w, fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var symbols []string
	for _, symbol := range req.Symbols {
		symbols = append(symbols, config.SplitSymbols(symbol)...)
	}
	if len(symbols) == 0 {
		s.sendError(w, "No symbols provided", http.StatusBadRequest)
		return
	}
	targets := config.Targets(symbols)

	s.logger.Infof("API request received for symbols: %v", symbols)

	s.runMu.Lock()
	defer s.runMu.Unlock()

	ctx := r.Context()
	var opts []extractor.DriverOption
	var runID int64
	if s.ledger != nil {
		id, err := s.ledger.BeginRun(ctx, targets, time.Now())
		if err != nil {
			s.logger.Errorf("Failed to record run: %v", err)
			s.sendError(w, "Failed to record run", http.StatusInternalServerError)
			return
		}
		runID = id
		opts = append(opts, extractor.WithRecorder(s.ledger, runID))
	}

	driver := extractor.NewDriver(s.config, s.newSession(s.config, s.logger), s.logger, opts...)
	summary, err := driver.Run(ctx, targets)

	if s.ledger != nil {
		if ferr := s.ledger.FinishRun(context.WithoutCancel(ctx), runID, time.Now()); ferr != nil {
			s.logger.Warnf("Failed to finish run %d: %v", runID, ferr)
		}
	}
	if err != nil {
		s.logger.Errorf("Extraction run failed: %v", err)
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := APIResponse{
		Success: !summary.Failed(),
		Data:    summary,
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// handleRuns lists recent runs from the ledger
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ledger == nil {
		s.sendError(w, "Run ledger not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.sendError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	ctx := r.Context()
	runs, err := s.ledger.RecentRuns(ctx, limit)
	if err != nil {
		s.logger.Errorf("Failed to list runs: %v", err)
		s.sendError(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	views := make([]RunView, 0, len(runs))
	for _, run := range runs {
		outcomes, err := s.ledger.Outcomes(ctx, run.ID)
		if err != nil {
			s.logger.Errorf("Failed to list outcomes of run %d: %v", run.ID, err)
			s.sendError(w, "Failed to list runs", http.StatusInternalServerError)
			return
		}
		views = append(views, RunView{Run: run, Outcomes: outcomes})
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Data: views}); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Errorf("Failed to encode error response: %v", err)
	}
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// Start serves the API until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port string) error {
	s.logger.Infof("Starting API server on port %s", port)
	s.logger.Info("Available endpoints:")
	s.logger.Info("  POST /extract - Extract the price history of the given symbols")
	s.logger.Info("  GET  /runs    - Recent runs from the run ledger")
	s.logger.Info("  GET  /health  - Health check")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down API server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close closes the run ledger; later calls are no-ops
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.ledger == nil {
			return
		}
		if err := s.ledger.Close(); err != nil {
			s.logger.Warnf("Failed to close run ledger: %v", err)
		}
	})
}

func newLogger() *logrus.Logger {
	logger := logrus.New()

	// Set timestamp format with milliseconds
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		if level, err := logrus.ParseLevel(levelStr); err == nil {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger
}

func main() {
	// Get port from environment variable, default to 8080
	serverPort := "8080"
	if envPort := os.Getenv("API_PORT"); envPort != "" {
		serverPort = envPort
		fmt.Printf("Using port from environment variable API_PORT: %s\n", serverPort)
	} else {
		fmt.Printf("No API_PORT environment variable found, using default: %s\n", serverPort)
	}

	logger := newLogger()

	cfg, err := config.Load(os.Getenv("PRICEHISTORY_CONFIG"))
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}

	var ledger *database.RunDB
	if cfg.DatabasePath != "" {
		ledger, err = database.Open(cfg.DatabasePath)
		if err != nil {
			logger.Fatalf("Failed to open run ledger: %v", err)
		}
		logger.Infof("Recording runs in %s", ledger.Path())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(cfg, logger, ledger, nil)
	err = server.Start(ctx, serverPort)
	// Fatalf exits without running deferred calls
	server.Close()
	if err != nil {
		logger.Fatalf("API server failed: %v", err)
	}
	logger.Info("API server stopped")
}
