package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zherdev/url-shortener/internal/models"
	"github.com/zherdev/url-shortener/internal/service"
	"github.com/zherdev/url-shortener/pkg/response"
)

type MockURLService struct {
	mock.Mock
}

func (s *MockURLService) CreateShortURL(ctx context.Context, longURL string, userID *int64, expiresAt *time.Time) (string, error) {
	args := s.Called(ctx, longURL, userID, expiresAt)
	return args.String(0), args.Error(1)
}

func (s *MockURLService) Resolve(ctx context.Context, shortCode string) (string, error) {
	args := s.Called(ctx, shortCode)
	return args.String(0), args.Error(1)
}

func (s *MockURLService) RecordClick(ctx context.Context, shortCode string) {
	s.Called(ctx, shortCode)
}

func (s *MockURLService) Metadata(ctx context.Context, shortCode string) (*models.URLMetadata, error) {
	args := s.Called(ctx, shortCode)
	meta, _ := args.Get(0).(*models.URLMetadata)
	return meta, args.Error(1)
}

func setupRouter(t testing.TB) (http.Handler, *MockURLService) {
	t.Helper()

	svcMock := new(MockURLService)
	router := NewRouter(httplog.NewLogger("test"), svcMock)

	return router, svcMock
}

func doRequest(t testing.TB, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	return rec
}

func decodeResponse(t testing.TB, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()

	var resp response.Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	return resp
}

func TestHandlePing(t *testing.T) {
	router, _ := setupRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/ping", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong\n", rec.Body.String())
}

func TestHandleCreateURL(t *testing.T) {
	t.Run("empty request body", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		rec := doRequest(t, router, http.MethodPost, "/url/create", " ")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svcMock.AssertExpectations(t)
	})

	t.Run("invalid url", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		rec := doRequest(t, router, http.MethodPost, "/url/create", `{"original_url":"not a url"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		resp := decodeResponse(t, rec)
		assert.Equal(t, response.StatusError, resp.Status)
		assert.NotEmpty(t, resp.Details)

		svcMock.AssertExpectations(t)
	})

	t.Run("expire_in_days out of range", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		rec := doRequest(t, router, http.MethodPost, "/url/create",
			`{"original_url":"https://example.com","expire_in_days":400}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svcMock.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("CreateShortURL", mock.Anything, "https://example.com", (*int64)(nil), (*time.Time)(nil)).
			Once().
			Return("", assert.AnError)

		rec := doRequest(t, router, http.MethodPost, "/url/create", `{"original_url":"https://example.com"}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		svcMock.AssertExpectations(t)
	})

	t.Run("success", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("CreateShortURL", mock.Anything, "https://example.com", (*int64)(nil), (*time.Time)(nil)).
			Once().
			Return("abc123", nil)

		rec := doRequest(t, router, http.MethodPost, "/url/create", `{"original_url":"https://example.com"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)

		resp := decodeResponse(t, rec)
		assert.Equal(t, response.StatusSuccess, resp.Status)

		data, ok := resp.Data.(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "abc123", data["short_code"])
		assert.Equal(t, "https://example.com", data["long_url"])

		svcMock.AssertExpectations(t)
	})

	t.Run("success with expiry", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("CreateShortURL", mock.Anything, "https://example.com", (*int64)(nil),
				mock.MatchedBy(func(expiresAt *time.Time) bool {
					if expiresAt == nil {
						return false
					}
					remaining := time.Until(*expiresAt)
					return remaining > 29*24*time.Hour && remaining <= 30*24*time.Hour
				})).
			Once().
			Return("abc123", nil)

		rec := doRequest(t, router, http.MethodPost, "/url/create",
			`{"original_url":"https://example.com","expire_in_days":30}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		svcMock.AssertExpectations(t)
	})
}

func TestHandleRedirect(t *testing.T) {
	t.Run("unknown short code", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("Resolve", mock.Anything, "nope").
			Once().
			Return("", service.ErrShortCodeNotFound)

		rec := doRequest(t, router, http.MethodGet, "/r/nope", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svcMock.AssertNotCalled(t, "RecordClick", mock.Anything, mock.Anything)
		svcMock.AssertExpectations(t)
	})

	t.Run("expired url", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("Resolve", mock.Anything, "abc123").
			Once().
			Return("", service.ErrURLExpired)

		rec := doRequest(t, router, http.MethodGet, "/r/abc123", "")

		assert.Equal(t, http.StatusGone, rec.Code)
		svcMock.AssertNotCalled(t, "RecordClick", mock.Anything, mock.Anything)
		svcMock.AssertExpectations(t)
	})

	t.Run("success records a click and redirects", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("Resolve", mock.Anything, "abc123").
			Once().
			Return("https://example.com", nil)
		svcMock.
			On("RecordClick", mock.Anything, "abc123").
			Once().
			Return()

		rec := doRequest(t, router, http.MethodGet, "/r/abc123", "")

		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "https://example.com", rec.Header().Get("Location"))
		svcMock.AssertExpectations(t)
	})
}

func TestHandleGetMetadata(t *testing.T) {
	t.Run("unknown short code", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("Metadata", mock.Anything, "nope").
			Once().
			Return(nil, service.ErrShortCodeNotFound)

		rec := doRequest(t, router, http.MethodGet, "/url/nope", "")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svcMock.AssertExpectations(t)
	})

	t.Run("expired url", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("Metadata", mock.Anything, "abc123").
			Once().
			Return(nil, service.ErrURLExpired)

		rec := doRequest(t, router, http.MethodGet, "/url/abc123", "")

		assert.Equal(t, http.StatusGone, rec.Code)
		svcMock.AssertExpectations(t)
	})

	t.Run("success", func(t *testing.T) {
		router, svcMock := setupRouter(t)

		svcMock.
			On("Metadata", mock.Anything, "abc123").
			Once().
			Return(&models.URLMetadata{
				LongURL:   "https://example.com",
				ShortCode: "abc123",
				Clicks:    8,
			}, nil)

		rec := doRequest(t, router, http.MethodGet, "/url/abc123", "")

		assert.Equal(t, http.StatusOK, rec.Code)

		resp := decodeResponse(t, rec)
		assert.Equal(t, response.StatusSuccess, resp.Status)

		data, ok := resp.Data.(map[string]any)
		assert.True(t, ok)
		assert.Equal(t, "abc123", data["short_code"])
		assert.Equal(t, float64(8), data["clicks"])

		svcMock.AssertExpectations(t)
	})
}
