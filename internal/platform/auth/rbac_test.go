package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestHasRole(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required []string
		want     bool
	}{
		{"match", []string{"translator"}, []string{"translator", "integration"}, true},
		{"second option", []string{"clerk", "integration"}, []string{"translator", "integration"}, true},
		{"admin bypass", []string{"admin"}, []string{"translator"}, true},
		{"no match", []string{"clerk"}, []string{"translator"}, false},
		{"no roles", nil, []string{"translator"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasRole(tt.granted, tt.required...); got != tt.want {
				t.Errorf("HasRole(%v, %v) = %v, want %v", tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  int
	}{
		{"allowed", []string{"translator"}, http.StatusOK},
		{"admin", []string{"admin"}, http.StatusOK},
		{"denied", []string{"clerk"}, http.StatusForbidden},
		{"anonymous", nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.roles != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, tt.roles))
			}
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(req, rec)

			err := RequireRole("translator", "integration")(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})(c)

			code := rec.Code
			if httpErr, ok := err.(*echo.HTTPError); ok {
				code = httpErr.Code
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, code)
			}
		})
	}
}

func TestUserIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDKey, "user-9")
	if got := UserIDFromContext(ctx); got != "user-9" {
		t.Errorf("expected user-9, got %q", got)
	}
	if got := UserIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty user id, got %q", got)
	}
}
