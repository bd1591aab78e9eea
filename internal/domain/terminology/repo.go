package terminology

import "context"

// Repositories return db.ErrNotFound when a lookup matches nothing.

type ConceptRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Concept, error)
	ListBySameAsMapping(ctx context.Context, sourceUUID, code string) ([]*Concept, error)
	ListByAnyMapping(ctx context.Context, sourceUUID, code string) ([]*Concept, error)
}

type ConceptSourceRepository interface {
	GetFHIRConceptSourceByURL(ctx context.Context, url string) (*FHIRConceptSource, error)
	GetFHIRConceptSourceBySourceUUID(ctx context.Context, sourceUUID string) (*FHIRConceptSource, error)
	ListFHIRConceptSources(ctx context.Context) ([]*FHIRConceptSource, error)
}

// MappingRepository reads the lookup tables that back the enum translators.
type MappingRepository interface {
	GetEncounterClass(ctx context.Context, locationUUID string) (string, error)
	GetObservationCategory(ctx context.Context, conceptClassUUID string) (string, error)
	GetDurationUnit(ctx context.Context, conceptUUID string) (string, error)
	GetDurationUnitConceptUUID(ctx context.Context, unitOfTime string) (string, error)
	GetIdentifierSystem(ctx context.Context, identifierTypeUUID string) (string, error)
	GetIdentifierTypeUUIDBySystem(ctx context.Context, url string) (string, error)
}
