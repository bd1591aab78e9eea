package translators

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// Settings carries the site configuration translators depend on.
type Settings struct {
	Locale                   string
	ContactAttributeTypeUUID string
	AllergySeverity          AllergySeverityConcepts
}

// Dependencies are the lookups the registry wires into its translators.
type Dependencies struct {
	Concepts       ConceptLookup
	ConceptSources ConceptSourceLookup
	Displays       CodeDisplays
	Mappings       terminology.MappingRepository

	Patients   identity.PatientRepository
	Persons    identity.PersonRepository
	Providers  identity.ProviderRepository
	Locations  admin.LocationRepository
	Encounters encounter.Repository
	Obs        clinical.ObsRepository
	Conditions clinical.ConditionRepository
	Allergies  clinical.AllergyRepository
	Drugs      medication.DrugRepository
	Orders     medication.OrderRepository

	Settings Settings
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Registry holds one translator per supported resource type.
type Registry struct {
	Patient            *PatientTranslator
	Practitioner       *PractitionerTranslator
	Encounter          *EncounterTranslator
	Observation        *ObservationTranslator
	Medication         *MedicationTranslator
	MedicationRequest  *MedicationRequestTranslator
	Condition          *ConditionTranslator
	AllergyIntolerance *AllergyIntoleranceTranslator

	invariants *fhir.InvariantChecker
	codecs     map[string]codec
	logger     zerolog.Logger
}

func NewRegistry(deps Dependencies) *Registry {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger.With().Str("component", "translators").Logger()

	concepts := NewConceptTranslator(deps.Concepts, deps.ConceptSources, deps.Displays, deps.Settings.Locale, logger)
	patientRefs := NewPatientReferenceTranslator(deps.Patients)
	practitionerRefs := NewPractitionerReferenceTranslator(deps.Providers)
	encounterRefs := NewEncounterReferenceTranslator(deps.Encounters)
	visitRefs := NewVisitReferenceTranslator(deps.Encounters)
	locationRefs := NewLocationReferenceTranslator(deps.Locations)
	obsRefs := NewObservationReferenceTranslator(deps.Obs)
	medicationRefs := NewMedicationReferenceTranslator(deps.Drugs)
	requestRefs := NewMedicationRequestReferenceTranslator(deps.Orders)
	serviceRequestRefs := NewServiceRequestReferenceTranslator(deps.Orders)

	names := NewPersonNameTranslator()
	gender := NewGenderTranslator(logger)
	birthDate := NewBirthDateTranslator(now)
	addresses := NewPersonAddressTranslator()
	telecom := NewTelecomTranslator(deps.Persons, deps.Settings.ContactAttributeTypeUUID)

	r := &Registry{
		Patient: NewPatientTranslator(NewPatientIdentifierTranslator(deps.Patients, deps.Mappings),
			names, gender, birthDate, addresses, telecom),
		Practitioner: NewPractitionerTranslator(names, gender, birthDate, addresses, telecom),
		Encounter:    NewEncounterTranslator(deps.Encounters, deps.Mappings, patientRefs, practitionerRefs,
			locationRefs, visitRefs, logger),
		Observation: NewObservationTranslator(concepts, deps.Mappings, patientRefs, encounterRefs, obsRefs,
			serviceRequestRefs, logger),
		Medication: NewMedicationTranslator(concepts),
		MedicationRequest: NewMedicationRequestTranslator(concepts, deps.Mappings, deps.Orders, MedicationRequestRefs{
			Patients:      patientRefs,
			Encounters:    encounterRefs,
			Practitioners: practitionerRefs,
			Medications:   medicationRefs,
			Requests:      requestRefs,
		}, now, logger),
		Condition:          NewConditionTranslator(concepts, patientRefs, encounterRefs, practitionerRefs),
		AllergyIntolerance: NewAllergyIntoleranceTranslator(concepts, deps.Concepts, deps.Settings.AllergySeverity,
			patientRefs, practitionerRefs),
		invariants: fhir.NewInvariantChecker(),
		logger:     logger,
	}

	r.codecs = map[string]codec{
		fhir.ResourcePatient:            bind[identity.Patient, fhir.Patient](r.Patient, deps.Patients.GetByUUID),
		fhir.ResourcePractitioner:       bind[identity.Provider, fhir.Practitioner](r.Practitioner, deps.Providers.GetByUUID),
		fhir.ResourceEncounter:          bind[encounter.Encounter, fhir.Encounter](r.Encounter, deps.Encounters.GetByUUID),
		fhir.ResourceObservation:        bind[clinical.Obs, fhir.Observation](r.Observation, deps.Obs.GetByUUID),
		fhir.ResourceMedication:         bind[medication.Drug, fhir.Medication](r.Medication, deps.Drugs.GetByUUID),
		fhir.ResourceMedicationRequest:  bind[medication.DrugOrder, fhir.MedicationRequest](r.MedicationRequest, deps.Orders.GetDrugOrderByUUID),
		fhir.ResourceCondition:          bind[clinical.Condition, fhir.Condition](r.Condition, deps.Conditions.GetByUUID),
		fhir.ResourceAllergyIntolerance: bind[clinical.Allergy, fhir.AllergyIntolerance](r.AllergyIntolerance, deps.Allergies.GetByUUID),
	}
	return r
}

// ResourceTypes lists the supported FHIR resource types in name order.
func (r *Registry) ResourceTypes() []string {
	out := make([]string, 0, len(r.codecs))
	for rt := range r.codecs {
		out = append(out, rt)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether resourceType has a translator.
func (r *Registry) Supports(resourceType string) bool {
	_, ok := r.codecs[resourceType]
	return ok
}

func (r *Registry) codec(resourceType string) (codec, error) {
	c, ok := r.codecs[resourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedResource, resourceType)
	}
	return c, nil
}

// loader reads a native record by uuid.
type loader[N any] func(ctx context.Context, uuid string) (*N, error)
