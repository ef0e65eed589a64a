package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/video-stream/summarizer/internal/api/handlers"
	"github.com/video-stream/summarizer/internal/api/middleware"
	"github.com/video-stream/summarizer/internal/auth"
	"github.com/video-stream/summarizer/internal/cache"
	"github.com/video-stream/summarizer/internal/config"
	"github.com/video-stream/summarizer/internal/db"
	"github.com/video-stream/summarizer/internal/job"
	"github.com/video-stream/summarizer/internal/service"
	"github.com/video-stream/summarizer/internal/storage"
)

// Deps are the components the router wires into handlers.
type Deps struct {
	Config   *config.Config
	Database *db.Database
	JWT      *auth.JWTService
	Service  *service.Service
	Store    *storage.Store
	Cache    *cache.Cache
	Jobs     *job.JobQueue
	Limiter  *middleware.RateLimiter
}

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(middleware.CORSHandler(d.Config.AllowedOrigins())))

	// Handlers
	authHandler := handlers.NewAuthHandler(d.Database, d.JWT)
	summarizeHandler := handlers.NewSummarizeHandler(d.Service, d.Database)
	thumbnailHandler := handlers.NewThumbnailHandler(d.Service, d.Database)
	subtitleHandler := handlers.NewSubtitleHandler(d.Service)
	filesHandler := handlers.NewFilesHandler(d.Store)
	userHandler := handlers.NewUserHandler(d.Database)
	jobHandler := handlers.NewJobHandler(d.Jobs, d.Database)
	settingsHandler := handlers.NewSettingsHandler(d.Database)
	adminHandler := handlers.NewAdminHandler(d.Database, d.Store, d.Cache, d.Jobs, d.Limiter)

	limit := func(h http.Handler) http.Handler { return h }
	if d.Limiter != nil {
		limit = d.Limiter.Handler
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.MaxBodySize(d.Config.Performance.MaxBodyBytes))

		r.Get("/health", handlers.Health)
		r.Post("/auth/login", authHandler.Login)

		// Public compute endpoints
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Use(chimw.Timeout(2 * time.Minute))

			r.Post("/summarize", summarizeHandler.Summarize)
			r.Get("/transcript", subtitleHandler.GetTranscript)
			r.Get("/thumbnail", thumbnailHandler.Get)
			r.Post("/download-thumbnail", thumbnailHandler.Download)
			r.Post("/upscale-thumbnail", thumbnailHandler.Upscale)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(d.JWT))

			r.Get("/auth/me", authHandler.Me)
			r.Put("/auth/password", authHandler.ChangePassword)

			// Thumbnail gallery
			r.Get("/thumbnails/tree", filesHandler.GetTree)
			r.Get("/thumbnails/tree/*", filesHandler.GetTree)
			r.Get("/thumbnails/search", filesHandler.Search)

			// Jobs
			r.With(limit).Post("/jobs/upscale", jobHandler.EnqueueUpscale)
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
			r.Delete("/jobs/{id}", jobHandler.CancelJob)
			r.Post("/jobs/{id}/retry", jobHandler.RetryJob)

			// Summary history
			r.Get("/history", userHandler.ListHistory)
			r.Get("/history/{id}", userHandler.GetHistory)
			r.Delete("/history/{id}", userHandler.DeleteHistory)

			r.Get("/settings", settingsHandler.GetSettings)

			// Admin
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(auth.RoleAdmin))

				r.Put("/settings", settingsHandler.UpdateSettings)
				r.Get("/admin/stats", adminHandler.DashboardStats)
				r.Get("/admin/users", adminHandler.ListUsers)
				r.Post("/admin/users", adminHandler.CreateUser)
				r.Put("/admin/users/{id}/password", adminHandler.ResetPassword)
				r.Delete("/admin/users/{id}", adminHandler.DeleteUser)
				r.Get("/admin/rate-limits", adminHandler.RateLimits)
				r.Delete("/admin/rate-limits", adminHandler.ClearRateLimits)
			})
		})
	})

	// Stored thumbnails
	fs := http.StripPrefix(storage.URLPrefix, http.FileServer(http.Dir(d.Store.Root())))
	r.Get(storage.URLPrefix+"*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=86400")
		fs.ServeHTTP(w, r)
	})

	return r
}
