package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pandarelay/internal/domain"
	"pandarelay/internal/infra"
	"pandarelay/internal/middleware"
	"pandarelay/internal/providers/image"
)

// maxBodyBytes bounds inbound JSON; base64 images inflate by a third.
const maxBodyBytes = 32 << 20

// Catalog is the subset of the catalog client the handlers call.
type Catalog interface {
	ListProducts(ctx context.Context) ([]json.RawMessage, error)
	AttachImage(ctx context.Context, productID, imageBase64 string) (json.RawMessage, error)
}

// App holds the handler dependencies. LegacyErrors answers failures with
// HTTP 200, which the original front end expects.
type App struct {
	Catalog      Catalog
	Images       image.Refiner
	Logger       infra.Logger
	LegacyErrors bool
	validator    *validator.Validate
}

// NewApp wires handlers to their upstream clients.
func NewApp(catalog Catalog, images image.Refiner, logger infra.Logger, legacyErrors bool) *App {
	return &App{
		Catalog:      catalog,
		Images:       images,
		Logger:       logger,
		validator:    newValidator(),
		LegacyErrors: legacyErrors,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail writes {"error": message}. Every error reaches the caller as JSON.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.HTTPStatus(err)
	event := a.Logger.Warn()
	if status >= http.StatusInternalServerError && domain.KindOf(err) != domain.KindTimeout {
		event = a.Logger.Error()
	}
	event.
		Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("kind", string(domain.KindOf(err))).
		Str("path", r.URL.Path).
		Msg("request failed")

	if a.LegacyErrors {
		status = http.StatusOK
	}
	a.json(w, status, map[string]string{"error": err.Error()})
}

// queryFiller is implemented by request types that can be populated from the
// query string when the body is empty.
type queryFiller interface {
	fromQuery(url.Values)
}

// decode reads a JSON body into dst, falling back to query parameters when the
// body is empty, then validates it. Requests with a prune method drop ignored
// fields before validation.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst queryFiller) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.NewError(domain.KindInvalidInput, "request body too large", err)
		}
		return domain.NewError(domain.KindInvalidInput, "failed to read request body", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		dst.fromQuery(r.URL.Query())
	} else if err := json.Unmarshal(raw, dst); err != nil {
		return domain.NewError(domain.KindInvalidInput, "invalid JSON payload", err)
	}
	if p, ok := dst.(interface{ prune() }); ok {
		p.prune()
	}
	return a.validate(dst)
}

func (a *App) validate(v any) error {
	err := a.validator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewError(domain.KindInvalidInput, "invalid payload", err)
	}
	fe := verrs[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		msg = fmt.Sprintf("%s or %s is required", fe.Field(), jsonName(v, fe.Param()))
	case "url", "http_url":
		msg = fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		msg = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return domain.NewError(domain.KindInvalidInput, msg, err)
}

// jsonName resolves a Go field name on v's struct to its json tag.
func jsonName(v any, field string) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(field); ok {
		if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
	}
	return field
}
