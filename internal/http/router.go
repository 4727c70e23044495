package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stonecrest/achgen/internal/http/achfile"
	"github.com/stonecrest/achgen/internal/http/auth"
	"github.com/stonecrest/achgen/internal/http/batch"
	"github.com/stonecrest/achgen/internal/http/returns"
)

func New(
	batchesV1 *batch.Handler,
	filesV1 *achfile.Handler,
	returnsV1 *returns.Handler,
	jwtSecret string,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(jwtSecret))

		r.Route("/batches", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			batchesV1.Routes(r)
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			filesV1.Routes(r)
		})

		r.Route("/returns", returnsV1.Routes)
	})

	return router
}
