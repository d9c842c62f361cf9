package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/mbolis/quick-form/app"
	"github.com/mbolis/quick-form/metrics"
	"github.com/mbolis/quick-form/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.RealIP, middlewares.Logger, middleware.Recoverer)
	root.Use(cors.Handler(corsOptions(app.CORSOrigins)))

	root.Get("/health", Health(app))
	root.Handle("/metrics", metrics.Handler(app.Registry))
	root.Handle("/uploads/*", serveUploads(app.UploadDir))

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	if app.RateLimit > 0 {
		api.Use(httprate.LimitByIP(app.RateLimit, time.Minute))
	}

	admin := func(r chi.Router) chi.Router {
		return r.With(app.Tokens.Verifier(), middlewares.Admin)
	}

	api.Route("/auth", func(r chi.Router) {
		r.Post("/bootstrap", Bootstrap(app))
		r.Post("/login", Login(app))
		r.Post("/logout", Logout(app))
		admin(r).Get("/me", Me(app))
	})

	api.Route("/forms", func(r chi.Router) {
		r.Get("/slug/{slug}", GetFormBySlug(app))
		r.Post("/slug/{slug}/check", CheckForm(app))

		// CRUD form
		r.Group(func(r chi.Router) {
			r.Use(app.Tokens.Verifier(), middlewares.Admin)
			r.Post("/", CreateForm(app))
			r.Get("/", ListForms(app))
			r.Get("/{id}", GetForm(app))
			r.Put("/{id}", UpdateForm(app))
			r.Delete("/{id}", DeleteForm(app))
		})
	})

	api.Route("/responses", func(r chi.Router) {
		r.Post("/{formId}", SubmitResponse(app))
		admin(r).Get("/form/{formId}", ListResponses(app))
		admin(r).Get("/export/{formId}", ExportResponses(app))
	})

	api.Post("/uploads", Upload(app))

	return api
}

// corsOptions lets the admin UI send its session cookie. Browsers refuse a
// wildcard origin on credentialed requests, so "*" echoes the caller's origin.
func corsOptions(origins []string) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	for _, o := range origins {
		if o == "*" {
			opts.AllowedOrigins = nil
			opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
			break
		}
	}
	return opts
}

func serveUploads(dir string) http.Handler {
	return http.StripPrefix("/uploads/", http.FileServer(http.Dir(dir)))
}
