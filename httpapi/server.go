package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Router *chi.Mux
}

func NewServer(handler *Handler) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/availability", handler.Availability)
		r.Post("/orders/{orderID}/pay", handler.ProcessPayment)
	})

	r.Route("/payout", func(r chi.Router) {
		r.Get("/settings", handler.PayoutSettings)
		r.Get("/settings/options", handler.PayoutOptions)
		r.Get("/settings/nonce", handler.PayoutNonce)
		r.Post("/settings", handler.SavePayoutSettings)
		r.Get("/balance", handler.PayoutBalance)
		r.Get("/methods/active", handler.ActiveMethod)
	})

	r.Route("/withdrawals", func(r chi.Router) {
		r.Post("/", handler.CreateWithdrawal)
		r.Post("/settle", handler.SettleWithdrawal)
	})

	return &Server{Router: r}
}
