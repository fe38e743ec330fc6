package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"pandarelay/internal/http/handlers"
	"pandarelay/internal/middleware"
)

// NewRouter mounts the relay endpoints. allowedOrigins feeds the CORS policy.
func NewRouter(app *handlers.App, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	panicStatus := http.StatusInternalServerError
	if app.LegacyErrors {
		panicStatus = http.StatusOK
	}

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(app.Logger),
		middleware.Recover(app.Logger, panicStatus),
		middleware.CORS(allowedOrigins),
	)
	r.NotFound(app.NotFound)
	r.MethodNotAllowed(app.MethodNotAllowed)

	r.Get("/", app.Root)
	r.Get("/health", app.Health)
	r.Get("/fetch_products", app.FetchProducts)
	r.Post("/refine_image", app.RefineImage)
	r.Post("/upload_image", app.UploadImage)

	return r
}
