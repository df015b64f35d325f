package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterOptions struct {
	CORSOrigins []string
}

func NewRouter(apiHandler *APIHandler, logger zerolog.Logger, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(Metrics)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", apiHandler.RootHandler)
	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/jwt/login", apiHandler.LoginHandler)
		r.Post("/register", apiHandler.RegisterHandler)

		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)
			r.Post("/jwt/logout", apiHandler.LogoutHandler)
		})
	})

	// User-authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(apiHandler.JWTAuthMiddleware)

		r.Get("/users/me", apiHandler.MeHandler)
		r.Patch("/users/me", apiHandler.UpdateMeHandler)
		r.Get("/users/{userID}", apiHandler.GetUserHandler)
		r.Patch("/users/{userID}", apiHandler.UpdateUserHandler)

		r.Post("/chat", apiHandler.ChatHandler)
		r.Get("/conversations", apiHandler.ListConversationsHandler)
	})

	return r
}
