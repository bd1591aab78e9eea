package translators

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// PractitionerTranslator maps providers. Demographics come from the linked
// person; a provider known only by name renders that name as text.
type PractitionerTranslator struct {
	names     *PersonNameTranslator
	gender    *GenderTranslator
	birthDate *BirthDateTranslator
	addresses *PersonAddressTranslator
	telecom   *TelecomTranslator
}

var _ Translator[*identity.Provider, *fhir.Practitioner] = (*PractitionerTranslator)(nil)

func NewPractitionerTranslator(names *PersonNameTranslator, gender *GenderTranslator, birthDate *BirthDateTranslator,
	addresses *PersonAddressTranslator, telecom *TelecomTranslator) *PractitionerTranslator {
	return &PractitionerTranslator{names: names, gender: gender, birthDate: birthDate, addresses: addresses, telecom: telecom}
}

func (t *PractitionerTranslator) ToFHIRResource(_ context.Context, p *identity.Provider) (*fhir.Practitioner, error) {
	if p == nil {
		return nil, nil
	}
	out := &fhir.Practitioner{
		ResourceType: fhir.ResourcePractitioner,
		ID:           p.UUID,
		Meta:         newMeta(p.DateCreated, p.DateChanged),
		Active:       fhir.Bool(!p.Retired),
	}
	if p.Identifier != "" {
		out.Identifier = []fhir.Identifier{{Value: p.Identifier}}
	}

	person := p.Person
	if person == nil {
		if p.Name != "" {
			out.Name = []fhir.HumanName{{Text: p.Name}}
		}
		return out, nil
	}
	for _, n := range person.Names {
		if !n.Voided {
			out.Name = append(out.Name, *t.names.ToFHIRResource(n))
		}
	}
	for _, a := range person.Addresses {
		if !a.Voided {
			out.Address = append(out.Address, *t.addresses.ToFHIRResource(a))
		}
	}
	out.Gender = t.gender.ToFHIRResource(person.Gender)
	out.BirthDate = t.birthDate.ToFHIRResource(person)
	out.Telecom = t.telecom.ToFHIRResource(person)
	return out, nil
}

func (t *PractitionerTranslator) ToOpenmrsType(ctx context.Context, r *fhir.Practitioner) (*identity.Provider, error) {
	return t.UpdateOpenmrsType(ctx, &identity.Provider{}, r)
}

func (t *PractitionerTranslator) UpdateOpenmrsType(ctx context.Context, existing *identity.Provider, r *fhir.Practitioner) (*identity.Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: practitioner resource is required", ErrIllegalArgument)
	}
	if existing == nil {
		existing = &identity.Provider{}
	}
	p := existing
	switch {
	case r.ID != "":
		p.UUID = r.ID
	case p.UUID == "":
		p.UUID = uuid.New().String()
	}
	for _, id := range r.Identifier {
		if id.Value != "" {
			p.Identifier = id.Value
			break
		}
	}
	if r.Active != nil {
		p.Retired = !*r.Active
	}

	if !hasDemographics(r) {
		return p, nil
	}
	if p.Person == nil {
		p.Person = &identity.Person{UUID: uuid.New().String()}
	}
	person := p.Person
	for i := range r.Name {
		person.AddName(t.names.ToOpenmrsType(&r.Name[i]))
	}
	if r.Gender != "" {
		person.Gender = t.gender.ToOpenmrsType(r.Gender)
	}
	if err := t.birthDate.ToOpenmrsType(person, r.BirthDate); err != nil {
		return nil, err
	}
	for i := range r.Address {
		a, err := t.addresses.ToOpenmrsType(&r.Address[i])
		if err != nil {
			return nil, err
		}
		person.AddAddress(a)
	}
	if err := t.telecom.apply(ctx, person, r.Telecom); err != nil {
		return nil, err
	}
	if p.Name == "" {
		if n := person.PreferredName(); n != nil {
			p.Name = n.FullName()
		}
	}
	return p, nil
}

func hasDemographics(r *fhir.Practitioner) bool {
	return len(r.Name) > 0 || r.Gender != "" || r.BirthDate != "" || len(r.Address) > 0 || len(r.Telecom) > 0
}
