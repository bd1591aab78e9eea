package translators

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/auth"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

const mimeFHIRJSON = "application/fhir+json"

// Roles allowed to call the translation endpoints; admin always passes.
var translateRoles = []string{"translator", "integration"}

type Handler struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewHandler(registry *Registry, logger zerolog.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	tr := g.Group("/translate", auth.RequireRole(translateRoles...))
	tr.GET("", h.ListResourceTypes)
	tr.POST("/:resourceType/$to-fhir", h.ToFHIR)
	tr.POST("/:resourceType/$to-openmrs", h.ToOpenmrs)

	r4 := g.Group("/R4", auth.RequireRole(translateRoles...))
	r4.GET("/:resourceType/:id", h.Read)
}

func (h *Handler) ListResourceTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"resourceTypes": h.registry.ResourceTypes()})
}

// ToFHIR accepts a native record as JSON and answers with the FHIR resource.
func (h *Handler) ToFHIR(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return bodyError(c, err)
	}
	out, err := h.registry.ToFHIRJSON(c.Request().Context(), c.Param("resourceType"), body)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.Blob(http.StatusOK, mimeFHIRJSON, out)
}

// translateRequest is the envelope form of a $to-openmrs body. A bare FHIR
// resource is accepted as well.
type translateRequest struct {
	ResourceType string          `json:"resourceType"`
	Resource     json.RawMessage `json:"resource"`
	Existing     json.RawMessage `json:"existing"`
}

// ToOpenmrs accepts a FHIR resource, optionally wrapped together with the
// native record it updates, and answers with the native record.
func (h *Handler) ToOpenmrs(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return bodyError(c, err)
	}
	var req translateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome("request body is not valid JSON"))
	}
	resource, existing := body, []byte(nil)
	if req.ResourceType == "" && len(req.Resource) > 0 {
		resource = req.Resource
		if len(req.Existing) > 0 && string(req.Existing) != "null" {
			existing = req.Existing
		}
	}

	out, err := h.registry.ToOpenmrsJSON(c.Request().Context(), c.Param("resourceType"), resource, existing)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSONBlob(http.StatusOK, out)
}

// Read serves the FHIR form of a stored native record.
func (h *Handler) Read(c echo.Context) error {
	out, err := h.registry.Read(c.Request().Context(), c.Param("resourceType"), c.Param("id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.Blob(http.StatusOK, mimeFHIRJSON, out)
}

// bodyError answers a failed body read. The body limit surfaces as a 413.
func bodyError(c echo.Context, err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
		return c.JSON(he.Code, fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTooCostly, "request body too large"))
	}
	return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
}

func (h *Handler) errorResponse(c echo.Context, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, fhir.NewOutcomeBuilder().AddIssues(verr.Issues...).Build())
	case errors.Is(err, ErrIllegalArgument), errors.Is(err, ErrInvalidResource):
		return c.JSON(http.StatusBadRequest, fhir.InvalidOutcome(err.Error()))
	case errors.Is(err, ErrUnsupportedResource):
		return c.JSON(http.StatusNotFound, fhir.NotSupportedOutcome(err.Error()))
	case errors.Is(err, ErrNotFound):
		return c.JSON(http.StatusNotFound,
			fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotFound, err.Error()))
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("translation failed")
		return c.JSON(http.StatusInternalServerError, fhir.ErrorOutcome("translation failed"))
	}
}
