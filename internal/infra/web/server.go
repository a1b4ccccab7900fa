package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/usecase"
)

// Server exposes the payment API: initiation, status query, correspondent
// catalog and the provider webhook.
type Server struct {
	paymentUC      usecase.PaymentUseCase
	jwtSecret      string
	webhookSecrets map[string]string // provider name -> shared secret
	log            *zerolog.Logger
}

func NewServer(paymentUC usecase.PaymentUseCase, jwtSecret string, webhookSecrets map[string]string, logger *zerolog.Logger) *Server {
	return &Server{
		paymentUC:      paymentUC,
		jwtSecret:      jwtSecret,
		webhookSecrets: webhookSecrets,
		log:            logger,
	}
}

// Router builds the chi router with the standard middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(Recover(s.log))
	r.Use(TraceID(s.log))
	r.Use(RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// One endpoint, dispatched on the action query parameter.
	r.Post("/payment", s.handlePaymentPost)
	r.Get("/payment", s.handlePaymentGet)

	return r
}

func (s *Server) handlePaymentPost(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "":
		s.handleInitiate(w, r)
	case "status":
		s.handleStatus(w, r)
	case "callback":
		s.handleCallback(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

func (s *Server) handlePaymentGet(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "providers":
		s.handleProviders(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}
