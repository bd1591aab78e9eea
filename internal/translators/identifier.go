package translators

import (
	"context"
	"errors"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// PatientIdentifierTranslator maps patient identifiers. The identifier type
// is carried as type.text and, when configured, as the identifier system.
type PatientIdentifierTranslator struct {
	patients identity.PatientRepository
	mappings terminology.MappingRepository
}

func NewPatientIdentifierTranslator(patients identity.PatientRepository, mappings terminology.MappingRepository) *PatientIdentifierTranslator {
	return &PatientIdentifierTranslator{patients: patients, mappings: mappings}
}

func (t *PatientIdentifierTranslator) ToFHIRResource(ctx context.Context, id *identity.PatientIdentifier) (*fhir.Identifier, error) {
	if id == nil {
		return nil, nil
	}
	out := &fhir.Identifier{
		ID:    id.UUID,
		Value: id.Identifier,
		Use:   "usual",
	}
	if id.Preferred {
		out.Use = "official"
	}
	if id.Type != nil {
		out.Type = &fhir.CodeableConcept{Text: id.Type.Name}
		system, err := t.mappings.GetIdentifierSystem(ctx, id.Type.UUID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		out.System = system
	}
	return out, nil
}

// ToOpenmrsType resolves the identifier type from the system first, then
// from type.text as a type name, then from a type coding carrying its uuid.
func (t *PatientIdentifierTranslator) ToOpenmrsType(ctx context.Context, id *fhir.Identifier) (*identity.PatientIdentifier, error) {
	if id == nil {
		return nil, nil
	}
	idType, err := t.identifierType(ctx, id)
	if err != nil {
		return nil, err
	}
	if idType == nil {
		label := id.System
		if label == "" && id.Type != nil {
			label = id.Type.Text
		}
		return nil, notFound("identifier type", label)
	}
	return &identity.PatientIdentifier{
		UUID:       id.ID,
		Identifier: id.Value,
		Type:       idType,
		Preferred:  id.Use == "official",
	}, nil
}

func (t *PatientIdentifierTranslator) identifierType(ctx context.Context, id *fhir.Identifier) (*identity.PatientIdentifierType, error) {
	found := func(v *identity.PatientIdentifierType, err error) (*identity.PatientIdentifierType, bool, error) {
		if errors.Is(err, db.ErrNotFound) {
			return nil, false, nil
		}
		return v, err == nil, err
	}

	if id.System != "" {
		typeUUID, err := t.mappings.GetIdentifierTypeUUIDBySystem(ctx, id.System)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return nil, err
		}
		if typeUUID != "" {
			if v, ok, err := found(t.patients.GetIdentifierTypeByUUID(ctx, typeUUID)); ok || err != nil {
				return v, err
			}
		}
	}
	if id.Type == nil {
		return nil, nil
	}
	if id.Type.Text != "" {
		if v, ok, err := found(t.patients.GetIdentifierTypeByName(ctx, id.Type.Text)); ok || err != nil {
			return v, err
		}
	}
	for _, c := range id.Type.Coding {
		if c.System != "" || c.Code == "" {
			continue
		}
		if v, ok, err := found(t.patients.GetIdentifierTypeByUUID(ctx, c.Code)); ok || err != nil {
			return v, err
		}
	}
	return nil, nil
}
