package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewRouter(cart *CartHandler, log *logrus.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		cart.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(LoggingMiddleware(log))

		r.Get("/", cart.GetCart)
		r.Delete("/", cart.ClearCart)
		r.Post("/items", cart.AddItem)
		r.Put("/items/{product_id}", cart.SetAmount)
		r.Delete("/items/{product_id}", cart.RemoveItem)
	})

	return otelhttp.NewHandler(r, "cart")
}
