package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/taskdeck/internal/api/handlers"
	"github.com/isdelr/taskdeck/internal/database"
	"github.com/isdelr/taskdeck/internal/identity"
	"github.com/isdelr/taskdeck/internal/navigation"
	"github.com/isdelr/taskdeck/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the services the router exposes.
type Deps struct {
	Store          *database.Store
	Hub            *websocket.Hub
	Stats          handlers.StatsSource
	NewAuth        handlers.AuthFactory
	Navigation     navigation.Options
	Identity       *identity.Server // nil unless the identity service is embedded
	AllowedOrigins []string
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	userHandler := handlers.NewUserHandler(d.Store)
	taskHandler := handlers.NewTaskHandler(d.Store, d.Hub, d.Navigation.OwnerID)
	systemHandler := handlers.NewSystemHandler(d.Stats)
	sessionHandler := handlers.NewSessionHandler(d.Hub, d.Store, d.NewAuth, d.Navigation, d.AllowedOrigins)

	r.Handle("/metrics", promhttp.Handler())

	// API versioning
	r.Route("/api/v1", func(r chi.Router) {
		// Presentation session over websocket
		r.Get("/session", sessionHandler.Serve)

		r.Route("/users", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.GetAll)
			r.Post("/", taskHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.Get)
				r.Put("/", taskHandler.Update)
				r.Delete("/", taskHandler.Delete)
			})
		})

		r.Get("/system/stats", systemHandler.GetStats)
	})

	if d.Identity != nil {
		r.Mount("/identity/v1", d.Identity.Routes())
	}

	return r
}
