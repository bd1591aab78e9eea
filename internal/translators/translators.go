// Package translators converts native OpenMRS records to FHIR R4 resources
// and back. Each resource translator is composed from narrow sub-translators
// handed to its constructor.
package translators

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
)

var (
	// ErrIllegalArgument reports a malformed reference or one of the wrong type.
	ErrIllegalArgument = errors.New("illegal argument")
	// ErrNotFound reports that a required lookup did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidResource reports an inbound resource that failed validation.
	ErrInvalidResource = errors.New("invalid resource")
	// ErrUnsupportedResource reports a resource type with no translator.
	ErrUnsupportedResource = errors.New("unsupported resource type")
)

// ToFHIRTranslator converts a native record into its FHIR form.
type ToFHIRTranslator[N, F any] interface {
	ToFHIRResource(ctx context.Context, native N) (F, error)
}

// ToOpenmrsTranslator builds a new native record from a FHIR resource.
type ToOpenmrsTranslator[N, F any] interface {
	ToOpenmrsType(ctx context.Context, resource F) (N, error)
}

// UpdatableOpenmrsTranslator applies a FHIR resource onto an existing record.
type UpdatableOpenmrsTranslator[N, F any] interface {
	UpdateOpenmrsType(ctx context.Context, existing N, resource F) (N, error)
}

// Translator is the full bidirectional contract of a resource translator.
type Translator[N, F any] interface {
	ToFHIRTranslator[N, F]
	ToOpenmrsTranslator[N, F]
	UpdatableOpenmrsTranslator[N, F]
}

// ConceptLookup resolves concepts; a miss is a nil concept and nil error.
type ConceptLookup interface {
	GetConceptByUUID(ctx context.Context, uuid string) (*terminology.Concept, error)
	GetConceptWithSameAsMappingInSource(ctx context.Context, source *terminology.ConceptSource, code string) (*terminology.Concept, error)
	GetConceptsWithAnyMappingInSource(ctx context.Context, source *terminology.ConceptSource, code string) ([]*terminology.Concept, error)
}

// ConceptSourceLookup maps concept sources to code system URLs and back.
type ConceptSourceLookup interface {
	GetURLForConceptSource(ctx context.Context, source *terminology.ConceptSource) (string, error)
	GetConceptSourceByURL(ctx context.Context, url string) (*terminology.ConceptSource, error)
}

// CodeDisplays serves displays of codes from loaded code systems.
type CodeDisplays interface {
	Display(system, code string) string
}

func notFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}

func illegal(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrIllegalArgument, fmt.Sprintf(format, args...))
}
