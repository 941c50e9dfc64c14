package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/reconciliation-service/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() *gin.Engine {
	router := gin.New()
	Setup(router, DefaultConfig("test", slog.New(slog.NewJSONHandler(io.Discard, nil))))
	return router
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	router := newTestRouter()
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Body.String())
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
}

func TestErrorHandler_RendersAppError(t *testing.T) {
	router := newTestRouter()
	router.GET("/fail", func(c *gin.Context) {
		_ = c.Error(errors.ErrInsufficientTransit("p-1"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errors.CodeInsufficientTransit, body.Code)
	assert.Equal(t, "/fail", body.Path)
	assert.Equal(t, "p-1", body.Details["productId"])
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	router := newTestRouter()
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), errors.CodeInternalError)
}

func TestContentType_RejectsNonJSONBody(t *testing.T) {
	router := newTestRouter()
	router.POST("/echo", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("quantity=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

type barcodeRequest struct {
	ProductID string `json:"productId" binding:"required,not_blank"`
	Barcode   string `json:"barcode" binding:"required,barcode"`
}

func TestBindAndValidate_CustomTags(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{name: "valid", body: `{"productId":"p-1","barcode":" 5012345678900 "}`},
		{name: "blank product id", body: `{"productId":"   ","barcode":"123"}`, wantField: "productId"},
		{name: "control character", body: `{"productId":"p-1","barcode":"12\u000734"}`, wantField: "barcode"},
	}

	router := newTestRouter()
	router.POST("/bind", func(c *gin.Context) {
		var req barcodeRequest
		if appErr := BindAndValidate(c, &req); appErr != nil {
			c.JSON(appErr.HTTPStatus, appErr)
			return
		}
		c.Status(http.StatusNoContent)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if tt.wantField == "" {
				assert.Equal(t, http.StatusNoContent, rec.Code)
				return
			}

			require.Equal(t, http.StatusBadRequest, rec.Code)
			var appErr errors.AppError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appErr))
			assert.Equal(t, errors.CodeValidationError, appErr.Code)
			assert.Contains(t, appErr.Details, tt.wantField)
		})
	}
}

func TestNoRoute(t *testing.T) {
	router := newTestRouter()
	router.NoRoute(NoRoute())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROUTE_NOT_FOUND")
}
