package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/shelfd/internal/api"
	apiMiddleware "github.com/phrazzld/shelfd/internal/api/middleware"
	"github.com/phrazzld/shelfd/internal/service"
	"github.com/phrazzld/shelfd/internal/service/auth"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// setupRouter builds the HTTP handler tree. Requests are traced by otelhttp
// before the trace middleware so the request trace ID matches the span.
func (app *application) setupRouter() http.Handler {
	return newRouter(app.taskService, app.jwtService, app.library, app.logger)
}

func newRouter(
	tasks service.TaskService,
	jwtService auth.JWTService,
	db api.Pinger,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware(logger))

	taskHandler := api.NewTaskHandler(tasks, logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/tasks", taskHandler.ListTasks)
		r.Post("/tasks/{id}/cancel", taskHandler.CancelTask)
		r.Post("/books/{id}/convert", taskHandler.ConvertBook)
		r.Post("/uploads", taskHandler.RecordUpload)

		r.Route("/admin", func(r chi.Router) {
			r.Use(apiMiddleware.RequireAdmin)

			r.Get("/schedule", taskHandler.GetSchedule)
			r.Put("/schedule", taskHandler.UpdateSchedule)
			r.Post("/metadata-backup", taskHandler.QueueMetadataBackup)
			r.Post("/thumbnails/refresh", taskHandler.RefreshThumbnails)
			r.Delete("/thumbnails", taskHandler.ClearThumbnails)
			r.Post("/mail/test", taskHandler.SendTestEmail)
		})
	})

	r.Method(http.MethodGet, "/health", api.NewHealthHandler(db))

	return otelhttp.NewHandler(r, "http.request")
}
