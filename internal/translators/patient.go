package translators

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

type PatientTranslator struct {
	identifiers *PatientIdentifierTranslator
	names       *PersonNameTranslator
	gender      *GenderTranslator
	birthDate   *BirthDateTranslator
	addresses   *PersonAddressTranslator
	telecom     *TelecomTranslator
}

var _ Translator[*identity.Patient, *fhir.Patient] = (*PatientTranslator)(nil)

func NewPatientTranslator(identifiers *PatientIdentifierTranslator, names *PersonNameTranslator, gender *GenderTranslator,
	birthDate *BirthDateTranslator, addresses *PersonAddressTranslator, telecom *TelecomTranslator) *PatientTranslator {
	return &PatientTranslator{
		identifiers: identifiers,
		names:       names,
		gender:      gender,
		birthDate:   birthDate,
		addresses:   addresses,
		telecom:     telecom,
	}
}

func (t *PatientTranslator) ToFHIRResource(ctx context.Context, p *identity.Patient) (*fhir.Patient, error) {
	if p == nil {
		return nil, nil
	}
	out := &fhir.Patient{
		ResourceType: fhir.ResourcePatient,
		ID:           p.UUID,
		Meta:         newMeta(p.DateCreated, p.DateChanged),
		Active:       fhir.Bool(!p.Voided),
		Gender:       t.gender.ToFHIRResource(p.Gender),
		BirthDate:    t.birthDate.ToFHIRResource(&p.Person),
		Telecom:      t.telecom.ToFHIRResource(&p.Person),
	}

	for _, id := range p.Identifiers {
		if id.Voided {
			continue
		}
		fid, err := t.identifiers.ToFHIRResource(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("patient identifier: %w", err)
		}
		out.Identifier = append(out.Identifier, *fid)
	}
	for _, n := range p.Names {
		if !n.Voided {
			out.Name = append(out.Name, *t.names.ToFHIRResource(n))
		}
	}
	for _, a := range p.Addresses {
		if !a.Voided {
			out.Address = append(out.Address, *t.addresses.ToFHIRResource(a))
		}
	}

	switch {
	case p.Dead && p.DeathDate != nil:
		out.DeceasedDateTime = fhir.FormatDateTime(*p.DeathDate)
	default:
		out.DeceasedBoolean = fhir.Bool(p.Dead)
	}
	return out, nil
}

func (t *PatientTranslator) ToOpenmrsType(ctx context.Context, r *fhir.Patient) (*identity.Patient, error) {
	return t.UpdateOpenmrsType(ctx, &identity.Patient{}, r)
}

func (t *PatientTranslator) UpdateOpenmrsType(ctx context.Context, existing *identity.Patient, r *fhir.Patient) (*identity.Patient, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: patient resource is required", ErrIllegalArgument)
	}
	if existing == nil {
		existing = &identity.Patient{}
	}
	p := existing
	switch {
	case r.ID != "":
		p.UUID = r.ID
	case p.UUID == "":
		p.UUID = uuid.New().String()
	}

	for i := range r.Identifier {
		id, err := t.identifiers.ToOpenmrsType(ctx, &r.Identifier[i])
		if err != nil {
			return nil, err
		}
		mergeIdentifier(p, id)
	}
	for i := range r.Name {
		p.AddName(t.names.ToOpenmrsType(&r.Name[i]))
	}
	if r.Gender != "" {
		p.Gender = t.gender.ToOpenmrsType(r.Gender)
	}
	if err := t.birthDate.ToOpenmrsType(&p.Person, r.BirthDate); err != nil {
		return nil, err
	}

	switch {
	case r.DeceasedDateTime != "":
		d, err := fhir.ParseTimePtr(r.DeceasedDateTime)
		if err != nil {
			return nil, fmt.Errorf("%w: deceasedDateTime: %v", ErrIllegalArgument, err)
		}
		p.Dead = true
		p.DeathDate = d
	case r.DeceasedBoolean != nil:
		p.Dead = *r.DeceasedBoolean
		if !p.Dead {
			p.DeathDate = nil
		}
	}

	for i := range r.Address {
		a, err := t.addresses.ToOpenmrsType(&r.Address[i])
		if err != nil {
			return nil, err
		}
		p.AddAddress(a)
	}
	if err := t.telecom.apply(ctx, &p.Person, r.Telecom); err != nil {
		return nil, err
	}
	if r.Active != nil {
		p.Voided = !*r.Active
	}
	return p, nil
}

func mergeIdentifier(p *identity.Patient, id *identity.PatientIdentifier) {
	for _, existing := range p.Identifiers {
		if id.UUID != "" && existing.UUID == id.UUID {
			location := existing.Location
			*existing = *id
			if existing.Location == nil {
				existing.Location = location
			}
			return
		}
	}
	if id.UUID == "" {
		for _, existing := range p.Identifiers {
			if !existing.Voided && existing.SameContent(id) {
				existing.Preferred = id.Preferred
				return
			}
		}
	}
	p.Identifiers = append(p.Identifiers, id)
}
