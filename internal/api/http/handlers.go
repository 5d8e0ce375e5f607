package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/zherdev/url-shortener/internal/service"
	"github.com/zherdev/url-shortener/pkg/response"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "pong")
}

type createURLRequest struct {
	OriginalURL string `json:"original_url" validate:"required,url"`
	// CustomAlias is accepted for API compatibility but codes are always
	// derived from the record id, so it is not consumed.
	CustomAlias  string `json:"custom_alias,omitempty" validate:"omitempty,alphanum,max=32"`
	ExpireInDays *int   `json:"expire_in_days,omitempty" validate:"omitempty,gte=0,lte=365"`
}

type createURLResponse struct {
	ShortCode string `json:"short_code"`
	LongURL   string `json:"long_url"`
}

func handleCreateURL(svc URLService, validate *validator.Validate) http.HandlerFunc {
	const op = "api.http.handleCreateURL"
	const successMsg = "The URL has been shortened successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		var req createURLRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			if errors.Is(err, io.EOF) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.EmptyRequestBodyResponse)
				return
			}

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.BadRequestResponse)
			return
		}

		if err := validate.Struct(req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationErrorResponse(err))
			return
		}

		var expiresAt *time.Time
		if req.ExpireInDays != nil {
			t := time.Now().AddDate(0, 0, *req.ExpireInDays)
			expiresAt = &t
		}

		shortCode, err := svc.CreateShortURL(r.Context(), req.OriginalURL, nil, expiresAt)
		if err != nil {
			httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.ServerErrorResponse)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.SuccessResponse(successMsg, createURLResponse{
			ShortCode: shortCode,
			LongURL:   req.OriginalURL,
		}))
	}
}

func handleRedirect(svc URLService) http.HandlerFunc {
	const op = "api.http.handleRedirect"

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		longURL, err := svc.Resolve(r.Context(), shortCode)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrShortCodeNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		// Clicks are counted only on successful resolves; the not-found and
		// expired paths never reach this point.
		svc.RecordClick(r.Context(), shortCode)

		http.Redirect(w, r, longURL, http.StatusFound)
	}
}

func handleGetMetadata(svc URLService) http.HandlerFunc {
	const op = "api.http.handleGetMetadata"
	const successMsg = "The URL metadata retrieved successfully."

	return func(w http.ResponseWriter, r *http.Request) {
		shortCode := chi.URLParam(r, "shortCode")

		meta, err := svc.Metadata(r.Context(), shortCode)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrShortCodeNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.ResourceNotFoundResponse)
			case errors.Is(err, service.ErrURLExpired):
				render.Status(r, http.StatusGone)
				render.JSON(w, r, response.URLExpiredResponse)
			default:
				httplog.LogEntrySetFields(r.Context(), map[string]any{"op": op, "err": err})

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ServerErrorResponse)
			}
			return
		}

		render.Status(r, http.StatusOK)
		render.JSON(w, r, response.SuccessResponse(successMsg, meta))
	}
}
