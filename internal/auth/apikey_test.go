package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func runMiddleware(t *testing.T, configured, provided string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if provided != "" {
		req.Header.Set("X-API-Key", provided)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := APIKeyMiddleware(configured)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	if err := handler(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestAPIKey_DisabledWhenUnset(t *testing.T) {
	rec := runMiddleware(t, "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", rec.Code)
	}
}

func TestAPIKey_Missing(t *testing.T) {
	rec := runMiddleware(t, "secret", "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for missing key, got %d", rec.Code)
	}
}

func TestAPIKey_Wrong(t *testing.T) {
	rec := runMiddleware(t, "secret", "nope")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for wrong key, got %d", rec.Code)
	}
}

func TestAPIKey_Valid(t *testing.T) {
	rec := runMiddleware(t, "secret", "secret")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for valid key, got %d", rec.Code)
	}
}
