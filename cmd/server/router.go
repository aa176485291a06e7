package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fithub/fithub-api/internal/api"
	apiMiddleware "github.com/fithub/fithub-api/internal/api/middleware"
	"github.com/fithub/fithub-api/internal/platform/metrics"
)

// routes collects what the router needs so it can be built without a
// running application.
type routes struct {
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auth     *apiMiddleware.AuthMiddleware
	limiter  *apiMiddleware.RateLimiter
	users    *api.UserHandler
	authn    *api.AuthHandler
	contents *api.ContentHandler
	comments *api.CommentHandler
}

// setupRouter builds the router from the application's services.
func (app *application) setupRouter() http.Handler {
	return newRouter(routes{
		logger:   app.logger,
		metrics:  app.metrics,
		auth:     apiMiddleware.NewAuthMiddleware(app.jwtService),
		limiter:  apiMiddleware.NewRateLimiter(app.config.RateLimit),
		users:    api.NewUserHandler(app.userService, app.logger),
		authn:    api.NewAuthHandler(app.userService, app.logger),
		contents: api.NewContentHandler(app.contentService, app.logger),
		comments: api.NewCommentHandler(app.commentService, app.logger),
	})
}

// newRouter registers every route and the middleware chain.
func newRouter(rt routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(rt.logger))
	if rt.metrics != nil {
		r.Use(rt.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			rt.logger.Error("Failed to write health check response", "error", err)
		}
	})

	r.Route("/api", func(r chi.Router) {
		// Authentication endpoints (public, limited per address)
		r.Route("/auth", func(r chi.Router) {
			r.Get("/nickname", rt.authn.CheckNickname)
			r.Group(func(r chi.Router) {
				r.Use(rt.limiter.Limit)
				r.Post("/register", rt.authn.Register)
				r.Post("/login", rt.authn.Login)
				r.Post("/refresh", rt.authn.RefreshToken)
			})
		})

		// Public reads; a bearer token fills in the viewer's flags.
		r.Group(func(r chi.Router) {
			r.Use(rt.auth.Optional)
			r.Get("/categories", rt.contents.Categories)
			r.Get("/{kind}", rt.contents.List)
			r.Get("/{kind}/popular", rt.contents.Popular)
			r.Get("/{kind}/{id}", rt.contents.Get)
			r.Get("/{kind}/{id}/comments", rt.comments.List)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.auth.Authenticate)

			r.Get("/users/me", rt.users.Me)
			r.Get("/users/me/saved", rt.contents.ListSaved)
			r.Get("/users/me/exercises", rt.users.Exercises)

			r.Group(func(r chi.Router) {
				r.Use(rt.limiter.Limit)

				r.Put("/users/me/push-token", rt.users.UpdatePushToken)
				r.Put("/users/me/password", rt.users.ChangePassword)
				r.Put("/users/me/exercises", rt.users.SetExercises)
				r.Patch("/users/me/exercises/main", rt.users.SetMainExercise)

				r.Post("/{kind}", rt.contents.Create)
				r.Put("/{kind}/{id}", rt.contents.Update)
				r.Delete("/{kind}/{id}", rt.contents.Delete)
				r.Post("/{kind}/{id}/like", rt.contents.Like)
				r.Post("/{kind}/{id}/save", rt.contents.Save)
				r.Post("/{kind}/{id}/report", rt.contents.Report)

				r.Post("/{kind}/{id}/comments", rt.comments.Create)
				r.Put("/comments/{id}", rt.comments.Update)
				r.Delete("/comments/{id}", rt.comments.Delete)
				r.Post("/comments/{id}/like", rt.comments.Like)
			})
		})
	})

	return r
}
