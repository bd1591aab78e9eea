package translators

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// ReferenceTranslator converts a native record to a "{Type}/{uuid}"
// reference and resolves such references back through a lookup.
type ReferenceTranslator[T any] struct {
	resourceType string
	id           func(T) string
	display      func(T) string
	lookup       func(ctx context.Context, id string) (T, error)
	// byIdentifier resolves references that carry only a business identifier.
	byIdentifier func(ctx context.Context, identifier string) (T, error)
}

// ToFHIRResource returns nil when the record is absent or has no uuid.
func (t *ReferenceTranslator[T]) ToFHIRResource(v T) *fhir.Reference {
	id := t.id(v)
	if id == "" {
		return nil
	}
	display := ""
	if t.display != nil {
		display = t.display(v)
	}
	return fhir.NewReference(t.resourceType, id, display)
}

// ToOpenmrsType resolves ref. A reference declaring another resource type is
// an illegal argument; one without an id, or whose target does not exist,
// yields the zero value.
func (t *ReferenceTranslator[T]) ToOpenmrsType(ctx context.Context, ref *fhir.Reference) (T, error) {
	var zero T
	if ref == nil {
		return zero, nil
	}
	if typ := fhir.ReferenceType(ref); typ != "" && typ != t.resourceType {
		return zero, illegal("reference %q must be of type %s", ref.Reference, t.resourceType)
	}
	id := fhir.ReferenceID(ref)
	lookup := t.lookup
	if id == "" && t.byIdentifier != nil && ref.Identifier != nil {
		id, lookup = ref.Identifier.Value, t.byIdentifier
	}
	if id == "" {
		return zero, nil
	}
	v, err := lookup(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("resolve %s/%s: %w", t.resourceType, id, err)
	}
	return v, nil
}

// ResourceType is the type this translator emits and accepts.
func (t *ReferenceTranslator[T]) ResourceType() string {
	return t.resourceType
}

func patientDisplay(p *identity.Patient) string {
	name := ""
	if n := p.PreferredName(); n != nil {
		name = n.FullName()
	}
	if id := p.PreferredIdentifier(); id != nil && id.Identifier != "" {
		label := "Identifier"
		if id.Type != nil && id.Type.Name != "" {
			label = id.Type.Name
		}
		if name == "" {
			return label + ": " + id.Identifier
		}
		return fmt.Sprintf("%s (%s: %s)", name, label, id.Identifier)
	}
	return name
}

func NewPatientReferenceTranslator(patients identity.PatientRepository) *ReferenceTranslator[*identity.Patient] {
	return &ReferenceTranslator[*identity.Patient]{
		resourceType: fhir.ResourcePatient,
		id: func(p *identity.Patient) string {
			if p == nil {
				return ""
			}
			return p.UUID
		},
		display: patientDisplay,
		lookup:  patients.GetByUUID,
	}
}

func providerDisplay(p *identity.Provider) string {
	name := p.DisplayName()
	if p.Identifier == "" {
		return name
	}
	if name == "" {
		return p.Identifier
	}
	return fmt.Sprintf("%s (Identifier: %s)", name, p.Identifier)
}

func NewPractitionerReferenceTranslator(providers identity.ProviderRepository) *ReferenceTranslator[*identity.Provider] {
	return &ReferenceTranslator[*identity.Provider]{
		resourceType: fhir.ResourcePractitioner,
		id: func(p *identity.Provider) string {
			if p == nil {
				return ""
			}
			return p.UUID
		},
		display:      providerDisplay,
		lookup:       providers.GetByUUID,
		byIdentifier: providers.GetByIdentifier,
	}
}

func NewEncounterReferenceTranslator(encounters encounter.Repository) *ReferenceTranslator[*encounter.Encounter] {
	return &ReferenceTranslator[*encounter.Encounter]{
		resourceType: fhir.ResourceEncounter,
		id: func(e *encounter.Encounter) string {
			if e == nil {
				return ""
			}
			return e.UUID
		},
		lookup: encounters.GetByUUID,
	}
}

// NewVisitReferenceTranslator references visits as Encounter resources.
func NewVisitReferenceTranslator(encounters encounter.Repository) *ReferenceTranslator[*encounter.Visit] {
	return &ReferenceTranslator[*encounter.Visit]{
		resourceType: fhir.ResourceEncounter,
		id: func(v *encounter.Visit) string {
			if v == nil {
				return ""
			}
			return v.UUID
		},
		display: func(v *encounter.Visit) string {
			if v.VisitType == nil {
				return ""
			}
			return v.VisitType.Name
		},
		lookup: encounters.GetVisitByUUID,
	}
}

func NewLocationReferenceTranslator(locations admin.LocationRepository) *ReferenceTranslator[*admin.Location] {
	return &ReferenceTranslator[*admin.Location]{
		resourceType: fhir.ResourceLocation,
		id: func(l *admin.Location) string {
			if l == nil {
				return ""
			}
			return l.UUID
		},
		display: func(l *admin.Location) string { return l.Name },
		lookup:  locations.GetByUUID,
	}
}

func NewObservationReferenceTranslator(obs clinical.ObsRepository) *ReferenceTranslator[*clinical.Obs] {
	return &ReferenceTranslator[*clinical.Obs]{
		resourceType: fhir.ResourceObservation,
		id: func(o *clinical.Obs) string {
			if o == nil {
				return ""
			}
			return o.UUID
		},
		lookup: obs.GetByUUID,
	}
}

func NewMedicationReferenceTranslator(drugs medication.DrugRepository) *ReferenceTranslator[*medication.Drug] {
	return &ReferenceTranslator[*medication.Drug]{
		resourceType: fhir.ResourceMedication,
		id: func(d *medication.Drug) string {
			if d == nil {
				return ""
			}
			return d.UUID
		},
		display: func(d *medication.Drug) string { return d.Name },
		lookup:  drugs.GetByUUID,
	}
}

func NewMedicationRequestReferenceTranslator(orders medication.OrderRepository) *ReferenceTranslator[*medication.Order] {
	return &ReferenceTranslator[*medication.Order]{
		resourceType: fhir.ResourceMedicationRequest,
		id: func(o *medication.Order) string {
			if o == nil {
				return ""
			}
			return o.UUID
		},
		lookup: orders.GetByUUID,
	}
}

// NewServiceRequestReferenceTranslator references non-drug orders.
func NewServiceRequestReferenceTranslator(orders medication.OrderRepository) *ReferenceTranslator[*medication.Order] {
	return &ReferenceTranslator[*medication.Order]{
		resourceType: fhir.ResourceServiceRequest,
		id: func(o *medication.Order) string {
			if o == nil {
				return ""
			}
			return o.UUID
		},
		lookup: orders.GetByUUID,
	}
}
