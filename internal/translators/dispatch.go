package translators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// ValidationError reports the invariants an inbound resource failed.
type ValidationError struct {
	ResourceType string
	Issues       []fhir.OperationOutcomeIssue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, issue.Diagnostics)
	}
	return fmt.Sprintf("invalid %s: %s", e.ResourceType, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidResource }

// codec moves one resource type between JSON and the typed translators.
type codec interface {
	toFHIR(ctx context.Context, native []byte) (any, error)
	toOpenmrs(ctx context.Context, resource, existing []byte) (any, error)
	read(ctx context.Context, id string) (any, error)
}

type binding[N, F any] struct {
	translator Translator[*N, *F]
	load       loader[N]
}

func bind[N, F any](t Translator[*N, *F], load loader[N]) codec {
	return &binding[N, F]{translator: t, load: load}
}

func (b *binding[N, F]) toFHIR(ctx context.Context, raw []byte) (any, error) {
	native := new(N)
	if err := json.Unmarshal(raw, native); err != nil {
		return nil, illegal("decode native record: %v", err)
	}
	return b.translator.ToFHIRResource(ctx, native)
}

func (b *binding[N, F]) toOpenmrs(ctx context.Context, raw, existing []byte) (any, error) {
	resource := new(F)
	if err := json.Unmarshal(raw, resource); err != nil {
		return nil, illegal("decode resource: %v", err)
	}
	if len(existing) == 0 {
		return b.translator.ToOpenmrsType(ctx, resource)
	}
	native := new(N)
	if err := json.Unmarshal(existing, native); err != nil {
		return nil, illegal("decode existing record: %v", err)
	}
	return b.translator.UpdateOpenmrsType(ctx, native, resource)
}

func (b *binding[N, F]) read(ctx context.Context, id string) (any, error) {
	native, err := b.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.translator.ToFHIRResource(ctx, native)
}

// ToFHIRJSON translates a native record, given as JSON, into the FHIR
// resource of resourceType.
func (r *Registry) ToFHIRJSON(ctx context.Context, resourceType string, native []byte) ([]byte, error) {
	c, err := r.codec(resourceType)
	if err != nil {
		return nil, err
	}
	out, err := c.toFHIR(ctx, native)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// ToOpenmrsJSON validates a FHIR resource and translates it into a native
// record. When existing is set the resource is applied onto that record.
func (r *Registry) ToOpenmrsJSON(ctx context.Context, resourceType string, resource, existing []byte) ([]byte, error) {
	c, err := r.codec(resourceType)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(resourceType, resource); err != nil {
		return nil, err
	}
	out, err := c.toOpenmrs(ctx, resource, existing)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// Read loads the native record with the given uuid and returns it as FHIR.
func (r *Registry) Read(ctx context.Context, resourceType, id string) ([]byte, error) {
	c, err := r.codec(resourceType)
	if err != nil {
		return nil, err
	}
	out, err := c.read(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, notFound(resourceType, id)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

// Validate checks that resource declares resourceType and satisfies the
// invariants registered for it.
func (r *Registry) Validate(resourceType string, resource []byte) error {
	var head fhir.Resource
	if err := json.Unmarshal(resource, &head); err != nil {
		return illegal("decode resource: %v", err)
	}
	if head.ResourceType != resourceType {
		return &ValidationError{ResourceType: resourceType, Issues: []fhir.OperationOutcomeIssue{{
			Severity:    fhir.IssueSeverityError,
			Code:        fhir.IssueTypeInvalid,
			Diagnostics: fmt.Sprintf("expected resourceType %s, got %q", resourceType, head.ResourceType),
			Expression:  []string{"resourceType"},
		}}}
	}
	issues, err := r.invariants.Check(resourceType, resource)
	if err != nil {
		return fmt.Errorf("check invariants: %w", err)
	}
	if len(issues) > 0 {
		r.logger.Debug().Str("resource_type", resourceType).Int("issues", len(issues)).Msg("resource failed invariants")
		return &ValidationError{ResourceType: resourceType, Issues: issues}
	}
	return nil
}
