package translators

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// defaultEncounterClass is used for locations without a class mapping.
const defaultEncounterClass = "AMB"

var encounterClassDisplays = map[string]string{
	"AMB":    "ambulatory",
	"EMER":   "emergency",
	"FLD":    "field",
	"HH":     "home health",
	"IMP":    "inpatient encounter",
	"ACUTE":  "inpatient acute",
	"NONAC":  "inpatient non-acute",
	"OBSENC": "observation encounter",
	"PRENC":  "pre-admission",
	"SS":     "short stay",
	"VR":     "virtual",
}

type EncounterTranslator struct {
	encounters    encounter.Repository
	mappings      terminology.MappingRepository
	patients      *ReferenceTranslator[*identity.Patient]
	practitioners *ReferenceTranslator[*identity.Provider]
	locations     *ReferenceTranslator[*admin.Location]
	visits        *ReferenceTranslator[*encounter.Visit]
	logger        zerolog.Logger
}

var _ Translator[*encounter.Encounter, *fhir.Encounter] = (*EncounterTranslator)(nil)

func NewEncounterTranslator(encounters encounter.Repository, mappings terminology.MappingRepository,
	patients *ReferenceTranslator[*identity.Patient], practitioners *ReferenceTranslator[*identity.Provider],
	locations *ReferenceTranslator[*admin.Location], visits *ReferenceTranslator[*encounter.Visit], logger zerolog.Logger) *EncounterTranslator {
	return &EncounterTranslator{
		encounters:    encounters,
		mappings:      mappings,
		patients:      patients,
		practitioners: practitioners,
		locations:     locations,
		visits:        visits,
		logger:        logger,
	}
}

func (t *EncounterTranslator) ToFHIRResource(ctx context.Context, e *encounter.Encounter) (*fhir.Encounter, error) {
	if e == nil {
		return nil, nil
	}
	out := &fhir.Encounter{
		ResourceType: fhir.ResourceEncounter,
		ID:           e.UUID,
		Meta:         newMeta(e.DateCreated, e.DateChanged),
		Status:       encounterStatus(e),
		Subject:      t.patients.ToFHIRResource(e.Patient),
		PartOf:       t.visits.ToFHIRResource(e.Visit),
	}
	if !e.EncounterDatetime.IsZero() {
		out.Period = &fhir.Period{Start: fhir.FormatDateTime(e.EncounterDatetime)}
	}
	if et := e.EncounterType; et != nil {
		out.Type = []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{System: SystemEncounterType, Code: et.UUID, Display: et.Name}},
			Text:   et.Name,
		}}
	}

	class, err := t.encounterClass(ctx, e.Location)
	if err != nil {
		return nil, err
	}
	out.Class = &fhir.Coding{System: SystemActCode, Code: class, Display: encounterClassDisplays[class]}

	if ref := t.locations.ToFHIRResource(e.Location); ref != nil {
		out.Location = []fhir.EncounterLocation{{Location: *ref}}
	}
	for _, p := range e.ActiveProviders() {
		ref := t.practitioners.ToFHIRResource(p.Provider)
		if ref == nil {
			continue
		}
		participant := fhir.EncounterParticipant{ID: p.UUID, Individual: ref}
		if p.Role != nil {
			participant.Type = []fhir.CodeableConcept{{
				Coding: []fhir.Coding{{Code: p.Role.UUID, Display: p.Role.Name}},
				Text:   p.Role.Name,
			}}
		}
		out.Participant = append(out.Participant, participant)
	}
	return out, nil
}

func encounterStatus(e *encounter.Encounter) string {
	switch {
	case e.Voided:
		return "entered-in-error"
	case e.Visit == nil:
		return "unknown"
	case e.Visit.IsOpen():
		return "in-progress"
	default:
		return "finished"
	}
}

func (t *EncounterTranslator) encounterClass(ctx context.Context, loc *admin.Location) (string, error) {
	if loc == nil || loc.UUID == "" {
		return defaultEncounterClass, nil
	}
	class, err := t.mappings.GetEncounterClass(ctx, loc.UUID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && class == "") {
		t.logger.Debug().Str("location", loc.UUID).Msg("no encounter class mapped for location")
		return defaultEncounterClass, nil
	}
	if err != nil {
		return "", fmt.Errorf("encounter class: %w", err)
	}
	return class, nil
}

func (t *EncounterTranslator) ToOpenmrsType(ctx context.Context, r *fhir.Encounter) (*encounter.Encounter, error) {
	return t.UpdateOpenmrsType(ctx, &encounter.Encounter{}, r)
}

func (t *EncounterTranslator) UpdateOpenmrsType(ctx context.Context, existing *encounter.Encounter, r *fhir.Encounter) (*encounter.Encounter, error) {
	if r == nil {
		return nil, illegal("encounter resource is required")
	}
	if existing == nil {
		existing = &encounter.Encounter{}
	}
	e := existing
	switch {
	case r.ID != "":
		e.UUID = r.ID
	case e.UUID == "":
		e.UUID = uuid.New().String()
	}

	if r.Subject != nil {
		p, err := t.patients.ToOpenmrsType(ctx, r.Subject)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, notFound("patient", fhir.ReferenceID(r.Subject))
		}
		e.Patient = p
	}
	for _, typ := range r.Type {
		et, err := t.encounterType(ctx, &typ)
		if err != nil {
			return nil, err
		}
		if et != nil {
			e.EncounterType = et
			break
		}
	}
	if r.Period != nil && r.Period.Start != "" {
		start, err := fhir.ParseTimePtr(r.Period.Start)
		if err != nil {
			return nil, illegal("period.start: %v", err)
		}
		e.EncounterDatetime = *start
	}
	if len(r.Location) > 0 {
		loc, err := t.locations.ToOpenmrsType(ctx, &r.Location[0].Location)
		if err != nil {
			return nil, err
		}
		e.Location = loc
	}
	if r.PartOf != nil {
		v, err := t.visits.ToOpenmrsType(ctx, r.PartOf)
		if err != nil {
			return nil, err
		}
		e.Visit = v
	}

	for i := range r.Participant {
		if err := t.addParticipant(ctx, e, &r.Participant[i]); err != nil {
			return nil, err
		}
	}
	if r.Status == "entered-in-error" {
		e.Voided = true
	}
	return e, nil
}

func (t *EncounterTranslator) encounterType(ctx context.Context, cc *fhir.CodeableConcept) (*encounter.EncounterType, error) {
	for _, c := range cc.Coding {
		if c.Code == "" || (c.System != "" && c.System != SystemEncounterType) {
			continue
		}
		et, err := t.encounters.GetEncounterTypeByUUID(ctx, c.Code)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("encounter type: %w", err)
		}
		return et, nil
	}
	return nil, nil
}

func (t *EncounterTranslator) addParticipant(ctx context.Context, e *encounter.Encounter, p *fhir.EncounterParticipant) error {
	provider, err := t.practitioners.ToOpenmrsType(ctx, p.Individual)
	if err != nil {
		return err
	}
	if provider == nil {
		return nil
	}
	var role *encounter.EncounterRole
	for _, typ := range p.Type {
		for _, c := range typ.Coding {
			if c.System != "" || c.Code == "" {
				continue
			}
			role, err = t.encounters.GetEncounterRoleByUUID(ctx, c.Code)
			if errors.Is(err, db.ErrNotFound) {
				role = nil
				continue
			}
			if err != nil {
				return fmt.Errorf("encounter role: %w", err)
			}
			break
		}
		if role != nil {
			break
		}
	}
	e.AddProvider(role, provider)
	return nil
}
