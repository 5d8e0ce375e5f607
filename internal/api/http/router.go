package http

import (
	"context"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"

	"github.com/zherdev/url-shortener/internal/models"
)

// URLService is the resolution core consumed by the HTTP layer: creation,
// redirect resolution with click recording, and metadata lookup are its
// entire public contract.
type URLService interface {
	CreateShortURL(ctx context.Context, longURL string, userID *int64, expiresAt *time.Time) (string, error)
	Resolve(ctx context.Context, shortCode string) (string, error)
	RecordClick(ctx context.Context, shortCode string)
	Metadata(ctx context.Context, shortCode string) (*models.URLMetadata, error)
}

func getValidate() *validator.Validate {
	validate := validator.New()

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return validate
}

func NewRouter(logger *httplog.Logger, urlSvc URLService) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"POST", "GET", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		AllowCredentials: false,
		MaxAge:           84600,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)

	validate := getValidate()

	r.Get("/ping", handlePing)

	r.Route("/url", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/create", handleCreateURL(urlSvc, validate))
		r.Get("/{shortCode}", handleGetMetadata(urlSvc))
	})

	r.Get("/r/{shortCode}", handleRedirect(urlSvc))

	return r
}
