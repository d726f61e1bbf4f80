package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storyboard/internal/http/handlers"
	"storyboard/internal/infra"
	"storyboard/internal/middleware"
)

// Options configures the router's middleware.
type Options struct {
	JWTSecret       string
	CORSOrigins     []string
	RateLimitPerMin int
	// StaticDir, when set, serves filesystem cache artifacts under /static.
	StaticDir string
	// GeoIP, when set, adds the client country to request logs.
	GeoIP  middleware.CountryLookup
	Logger infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID(opts.Logger),
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)
	if opts.GeoIP != nil {
		r.Use(middleware.Country(opts.GeoIP))
	}

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.JWTSecret))

			// Streams are long-lived and exempt from the request budget.
			r.Get("/feed/{parentID}", app.Feed)
			r.Get("/feed/{parentID}/ws", app.FeedWS)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(opts.RateLimitPerMin))

				r.Post("/projects", app.CreateProject)
				r.Route("/projects/{projectID}", func(r chi.Router) {
					r.Get("/", app.GetProject)
					r.Post("/storyline", app.GenerateStoryline)
					r.Put("/storylines/{storylineID}/selected", app.SelectStoryline)
					r.Post("/finalize", app.FinalizeProject)
				})
				r.Route("/shots/{shotID}", func(r chi.Router) {
					r.Post("/visual-prompt", app.GenerateVisualPrompt)
					r.Post("/image", app.GenerateShotImage)
					r.Post("/audio", app.GenerateShotAudio)
				})
				r.Post("/characters/{characterID}/image", app.GenerateCharacterImage)
				r.Post("/units/{unitID}/retry", app.RetryUnit)
				r.Get("/jobs/{jobID}", app.JobStatus)
				r.Route("/credits", func(r chi.Router) {
					r.Get("/", app.CreditBalance)
					r.Post("/use", app.UseCredits)
				})
			})
		})
	})

	return r
}
