package translators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/auth"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/middleware"
)

// newTestServer routes through RegisterRoutes; the X-Roles header stands in
// for the roles a token would carry.
func newTestServer(f *fixture) *echo.Echo {
	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if roles := c.Request().Header.Get("X-Roles"); roles != "" {
				ctx := context.WithValue(c.Request().Context(), auth.UserRolesKey, strings.Split(roles, ","))
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	})
	NewHandler(f.registry(), zerolog.Nop()).RegisterRoutes(e.Group("/fhir2"))
	return e
}

func do(e *echo.Echo, method, path, roles, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if roles != "" {
		req.Header.Set("X-Roles", roles)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) fhir.OperationOutcome {
	t.Helper()
	var oo fhir.OperationOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &oo); err != nil {
		t.Fatalf("decode outcome: %v (%s)", err, rec.Body.String())
	}
	if oo.ResourceType != "OperationOutcome" || len(oo.Issue) == 0 {
		t.Fatalf("expected an OperationOutcome with issues, got %s", rec.Body.String())
	}
	return oo
}

func TestHandler_ListResourceTypes(t *testing.T) {
	e := newTestServer(newFixture())
	rec := do(e, http.MethodGet, "/fhir2/translate", "translator", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string][]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body["resourceTypes"]) != 8 {
		t.Errorf("expected 8 resource types, got %v", body["resourceTypes"])
	}
}

func TestHandler_RequiresRole(t *testing.T) {
	e := newTestServer(newFixture())
	tests := []struct {
		roles string
		want  int
	}{
		{"", http.StatusForbidden},
		{"clerk", http.StatusForbidden},
		{"integration", http.StatusOK},
		{"admin", http.StatusOK},
	}
	for _, tt := range tests {
		if rec := do(e, http.MethodGet, "/fhir2/translate", tt.roles, ""); rec.Code != tt.want {
			t.Errorf("roles %q: expected %d, got %d", tt.roles, tt.want, rec.Code)
		}
	}
}

func TestHandler_ToFHIR(t *testing.T) {
	e := newTestServer(newFixture())
	rec := do(e, http.MethodPost, "/fhir2/translate/Patient/$to-fhir", "translator",
		`{"uuid":"pat-1","gender":"M","names":[{"given_name":"John","family_name":"Doe"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/fhir+json" {
		t.Errorf("unexpected content type %s", ct)
	}
	var p fhir.Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ID != "pat-1" || p.Gender != "male" {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestHandler_ToOpenmrs(t *testing.T) {
	e := newTestServer(newFixture())

	t.Run("bare resource", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/fhir2/translate/Patient/$to-openmrs", "translator",
			`{"resourceType":"Patient","id":"pat-2","name":[{"family":"Doe"}]}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), `"uuid":"pat-2"`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("envelope with existing", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/fhir2/translate/Patient/$to-openmrs", "translator",
			`{"resource":{"resourceType":"Patient","name":[{"family":"Doe"}]},"existing":{"uuid":"pat-3","gender":"F"}}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		body := rec.Body.String()
		if !strings.Contains(body, `"uuid":"pat-3"`) || !strings.Contains(body, `"gender":"F"`) {
			t.Errorf("expected existing record updated, got %s", body)
		}
	})

	t.Run("invariant failure", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/fhir2/translate/Patient/$to-openmrs", "translator",
			`{"resourceType":"Patient","gender":"male"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if oo := decodeOutcome(t, rec); oo.Issue[0].Code != fhir.IssueTypeInvariant {
			t.Errorf("expected invariant issue, got %+v", oo.Issue)
		}
	})

	t.Run("unresolved reference", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/fhir2/translate/Condition/$to-openmrs", "translator",
			`{"resourceType":"Condition","code":{"text":"Headache"},"subject":{"reference":"Patient/ghost"}}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
		if oo := decodeOutcome(t, rec); oo.Issue[0].Code != fhir.IssueTypeNotFound {
			t.Errorf("expected not-found issue, got %+v", oo.Issue)
		}
	})

	t.Run("not json", func(t *testing.T) {
		rec := do(e, http.MethodPost, "/fhir2/translate/Patient/$to-openmrs", "translator", `nope`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}

func TestHandler_UnsupportedType(t *testing.T) {
	e := newTestServer(newFixture())
	rec := do(e, http.MethodPost, "/fhir2/translate/Basic/$to-fhir", "translator", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if oo := decodeOutcome(t, rec); oo.Issue[0].Code != fhir.IssueTypeNotSupported {
		t.Errorf("expected not-supported issue, got %+v", oo.Issue)
	}
}

func TestHandler_Read(t *testing.T) {
	f := newFixture()
	f.allergies["allergy-1"] = &clinical.Allergy{UUID: "allergy-1", Allergen: clinical.Allergen{NonCoded: "Dust"}}
	e := newTestServer(f)

	rec := do(e, http.MethodGet, "/fhir2/R4/AllergyIntolerance/allergy-1", "translator", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var a fhir.AllergyIntolerance
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.ID != "allergy-1" {
		t.Errorf("unexpected allergy %+v", a)
	}

	rec = do(e, http.MethodGet, "/fhir2/R4/AllergyIntolerance/missing", "translator", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_BodyTooLarge(t *testing.T) {
	e := newTestServer(newFixture())
	e.Use(middleware.BodyLimit("16"))

	req := httptest.NewRequest(http.MethodPost, "/fhir2/translate/Patient/$to-openmrs",
		strings.NewReader(`{"resourceType":"Patient","gender":"female"}`))
	req.ContentLength = -1
	req.Header.Set("X-Roles", "translator")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d: %s", rec.Code, rec.Body.String())
	}
	if oo := decodeOutcome(t, rec); oo.Issue[0].Code != fhir.IssueTypeTooCostly {
		t.Errorf("expected too-costly issue, got %+v", oo.Issue[0])
	}
}
