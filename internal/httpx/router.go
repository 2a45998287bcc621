package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jcmexdev/phonecall-sagas/internal/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachTracingMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/phone-calls", func(r chi.Router) {
		r.Post("/", handler.StartPhoneCall)
		r.Get("/{id}", handler.GetPhoneCall)
		r.Post("/{id}/triggers", handler.FireTrigger)
		r.Delete("/{id}", handler.TerminatePhoneCall)
	})
	return r
}
