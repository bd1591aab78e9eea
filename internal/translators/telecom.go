package translators

import (
	"context"
	"fmt"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// TelecomTranslator maps person attributes of the configured contact
// attribute type to phone contact points.
type TelecomTranslator struct {
	persons           identity.PersonRepository
	attributeTypeUUID string
}

func NewTelecomTranslator(persons identity.PersonRepository, attributeTypeUUID string) *TelecomTranslator {
	return &TelecomTranslator{persons: persons, attributeTypeUUID: attributeTypeUUID}
}

func (t *TelecomTranslator) ToFHIRResource(p *identity.Person) []fhir.ContactPoint {
	if p == nil || t.attributeTypeUUID == "" {
		return nil
	}
	var out []fhir.ContactPoint
	for _, a := range p.AttributesOfType(t.attributeTypeUUID) {
		if a.Value == "" {
			continue
		}
		out = append(out, fhir.ContactPoint{ID: a.UUID, System: "phone", Value: a.Value})
	}
	return out
}

// ToOpenmrsType returns nil when no contact attribute type is configured.
func (t *TelecomTranslator) ToOpenmrsType(ctx context.Context, cp *fhir.ContactPoint) (*identity.PersonAttribute, error) {
	if cp == nil || t.attributeTypeUUID == "" || cp.Value == "" {
		return nil, nil
	}
	attrType, err := t.persons.GetAttributeTypeByUUID(ctx, t.attributeTypeUUID)
	if err != nil {
		return nil, fmt.Errorf("contact attribute type: %w", err)
	}
	return &identity.PersonAttribute{UUID: cp.ID, Value: cp.Value, Type: attrType}, nil
}

// apply merges contact points into the attributes of p, replacing those
// with a matching uuid.
func (t *TelecomTranslator) apply(ctx context.Context, p *identity.Person, telecom []fhir.ContactPoint) error {
	for i := range telecom {
		attr, err := t.ToOpenmrsType(ctx, &telecom[i])
		if err != nil {
			return err
		}
		if attr == nil {
			continue
		}
		replaced := false
		for _, existing := range p.Attributes {
			if attr.UUID != "" && existing.UUID == attr.UUID {
				*existing = *attr
				replaced = true
				break
			}
		}
		if !replaced {
			p.Attributes = append(p.Attributes, attr)
		}
	}
	return nil
}
