// Package server exposes the HTTP surface: the Telegram webhook, the cron
// trigger for scheduled posts and a health probe.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"

	"wavebot/internal/schedule"
)

// CronSecretHeader authenticates calls to the cron endpoint.
const CronSecretHeader = "X-Cron-Secret"

// Dispatcher consumes one Telegram update.
type Dispatcher interface {
	ProcessUpdate(ctx context.Context, update telego.Update)
}

// Server serves the webhook and cron endpoints.
type Server struct {
	cronSecret string
	dispatcher Dispatcher
	reconciler *schedule.Reconciler
	httpServer *http.Server
}

// New creates a Server listening on addr.
func New(addr, cronSecret string, dispatcher Dispatcher, reconciler *schedule.Reconciler) *Server {
	s := &Server{
		cronSecret: cronSecret,
		dispatcher: dispatcher,
		reconciler: reconciler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleHealth)
	mux.HandleFunc("/webhook", s.handleWebhook)
	mux.HandleFunc("/cron", s.handleCron)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, "ok")
}

// handleWebhook accepts one Telegram update per request. Telegram retries on
// non-2xx responses, so malformed bodies are rejected and everything else is
// acknowledged once dispatched.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var update telego.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("[Webhook] Failed to decode update: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.dispatcher.ProcessUpdate(r.Context(), update)
	fmt.Fprint(w, "ok")
}

// handleCron runs one reconciliation pass, dispatching every scheduled post
// that has come due.
func (s *Server) handleCron(w http.ResponseWriter, r *http.Request) {
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(CronSecretHeader)), []byte(s.cronSecret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	processed, err := s.reconciler.Run(r.Context(), time.Now())
	if err != nil {
		log.Printf("[Cron] Reconciliation failed: %v", err)
		sentry.CaptureException(err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"processed": processed})
}
