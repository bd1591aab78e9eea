package translators

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

func missing(what, key string) error {
	return fmt.Errorf("%s %s: %w", what, key, db.ErrNotFound)
}

// -- terminology --

type mockConcepts struct {
	byUUID map[string]*terminology.Concept
	// keyed by source uuid + "|" + code
	sameAs map[string]*terminology.Concept
	any    map[string][]*terminology.Concept
}

func newMockConcepts(concepts ...*terminology.Concept) *mockConcepts {
	m := &mockConcepts{
		byUUID: make(map[string]*terminology.Concept),
		sameAs: make(map[string]*terminology.Concept),
		any:    make(map[string][]*terminology.Concept),
	}
	for _, c := range concepts {
		m.add(c)
	}
	return m
}

func (m *mockConcepts) add(c *terminology.Concept) {
	m.byUUID[c.UUID] = c
	for _, cm := range c.Mappings {
		if cm.Term == nil || cm.Term.Source == nil {
			continue
		}
		key := cm.Term.Source.UUID + "|" + cm.Term.Code
		if cm.IsSameAs() {
			m.sameAs[key] = c
		}
		m.any[key] = append(m.any[key], c)
	}
}

func (m *mockConcepts) GetConceptByUUID(_ context.Context, uuid string) (*terminology.Concept, error) {
	return m.byUUID[uuid], nil
}

func (m *mockConcepts) GetConceptWithSameAsMappingInSource(_ context.Context, source *terminology.ConceptSource, code string) (*terminology.Concept, error) {
	return m.sameAs[source.UUID+"|"+code], nil
}

func (m *mockConcepts) GetConceptsWithAnyMappingInSource(_ context.Context, source *terminology.ConceptSource, code string) ([]*terminology.Concept, error) {
	return m.any[source.UUID+"|"+code], nil
}

type mockSources struct {
	urls  map[string]string // source uuid -> url
	byURL map[string]*terminology.ConceptSource
}

func newMockSources(pairs map[*terminology.ConceptSource]string) *mockSources {
	m := &mockSources{urls: make(map[string]string), byURL: make(map[string]*terminology.ConceptSource)}
	for src, url := range pairs {
		m.urls[src.UUID] = url
		m.byURL[url] = src
	}
	return m
}

func (m *mockSources) GetURLForConceptSource(_ context.Context, source *terminology.ConceptSource) (string, error) {
	if source == nil {
		return "", nil
	}
	return m.urls[source.UUID], nil
}

func (m *mockSources) GetConceptSourceByURL(_ context.Context, url string) (*terminology.ConceptSource, error) {
	return m.byURL[url], nil
}

type mockDisplays map[string]string

func (m mockDisplays) Display(system, code string) string {
	return m[system+"|"+code]
}

type mockMappings struct {
	encounterClasses      map[string]string
	observationCategories map[string]string
	durationUnits         map[string]string
	identifierSystems     map[string]string
}

func newMockMappings() *mockMappings {
	return &mockMappings{
		encounterClasses:      make(map[string]string),
		observationCategories: make(map[string]string),
		durationUnits:         make(map[string]string),
		identifierSystems:     make(map[string]string),
	}
}

func (m *mockMappings) GetEncounterClass(_ context.Context, locationUUID string) (string, error) {
	if v, ok := m.encounterClasses[locationUUID]; ok {
		return v, nil
	}
	return "", missing("encounter class", locationUUID)
}

func (m *mockMappings) GetObservationCategory(_ context.Context, conceptClassUUID string) (string, error) {
	if v, ok := m.observationCategories[conceptClassUUID]; ok {
		return v, nil
	}
	return "", missing("observation category", conceptClassUUID)
}

func (m *mockMappings) GetDurationUnit(_ context.Context, conceptUUID string) (string, error) {
	if v, ok := m.durationUnits[conceptUUID]; ok {
		return v, nil
	}
	return "", missing("duration unit", conceptUUID)
}

func (m *mockMappings) GetDurationUnitConceptUUID(_ context.Context, unit string) (string, error) {
	for conceptUUID, u := range m.durationUnits {
		if u == unit {
			return conceptUUID, nil
		}
	}
	return "", missing("duration unit concept", unit)
}

func (m *mockMappings) GetIdentifierSystem(_ context.Context, typeUUID string) (string, error) {
	if v, ok := m.identifierSystems[typeUUID]; ok {
		return v, nil
	}
	return "", missing("identifier system", typeUUID)
}

func (m *mockMappings) GetIdentifierTypeUUIDBySystem(_ context.Context, url string) (string, error) {
	for typeUUID, u := range m.identifierSystems {
		if u == url {
			return typeUUID, nil
		}
	}
	return "", missing("identifier type", url)
}

// -- identity --

type mockPatients struct {
	patients map[string]*identity.Patient
	types    map[string]*identity.PatientIdentifierType
}

func newMockPatients() *mockPatients {
	return &mockPatients{
		patients: make(map[string]*identity.Patient),
		types:    make(map[string]*identity.PatientIdentifierType),
	}
}

func (m *mockPatients) GetByUUID(_ context.Context, uuid string) (*identity.Patient, error) {
	if p, ok := m.patients[uuid]; ok {
		return p, nil
	}
	return nil, missing("patient", uuid)
}

func (m *mockPatients) GetIdentifierTypeByUUID(_ context.Context, uuid string) (*identity.PatientIdentifierType, error) {
	if t, ok := m.types[uuid]; ok {
		return t, nil
	}
	return nil, missing("identifier type", uuid)
}

func (m *mockPatients) GetIdentifierTypeByName(_ context.Context, name string) (*identity.PatientIdentifierType, error) {
	for _, t := range m.types {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, missing("identifier type", name)
}

type mockPersons struct {
	attributeTypes map[string]*identity.PersonAttributeType
}

func (m *mockPersons) GetAttributeTypeByUUID(_ context.Context, uuid string) (*identity.PersonAttributeType, error) {
	if t, ok := m.attributeTypes[uuid]; ok {
		return t, nil
	}
	return nil, missing("person attribute type", uuid)
}

type mockProviders struct {
	providers map[string]*identity.Provider
}

func (m *mockProviders) GetByUUID(_ context.Context, uuid string) (*identity.Provider, error) {
	if p, ok := m.providers[uuid]; ok {
		return p, nil
	}
	return nil, missing("provider", uuid)
}

func (m *mockProviders) GetByIdentifier(_ context.Context, identifier string) (*identity.Provider, error) {
	for _, p := range m.providers {
		if p.Identifier == identifier {
			return p, nil
		}
	}
	return nil, missing("provider", identifier)
}

// -- admin, encounter --

type mockLocations map[string]*admin.Location

func (m mockLocations) GetByUUID(_ context.Context, uuid string) (*admin.Location, error) {
	if l, ok := m[uuid]; ok {
		return l, nil
	}
	return nil, missing("location", uuid)
}

type mockEncounters struct {
	encounters map[string]*encounter.Encounter
	types      map[string]*encounter.EncounterType
	roles      map[string]*encounter.EncounterRole
	visits     map[string]*encounter.Visit
}

func newMockEncounters() *mockEncounters {
	return &mockEncounters{
		encounters: make(map[string]*encounter.Encounter),
		types:      make(map[string]*encounter.EncounterType),
		roles:      make(map[string]*encounter.EncounterRole),
		visits:     make(map[string]*encounter.Visit),
	}
}

func (m *mockEncounters) GetByUUID(_ context.Context, uuid string) (*encounter.Encounter, error) {
	if e, ok := m.encounters[uuid]; ok {
		return e, nil
	}
	return nil, missing("encounter", uuid)
}

func (m *mockEncounters) GetEncounterTypeByUUID(_ context.Context, uuid string) (*encounter.EncounterType, error) {
	if t, ok := m.types[uuid]; ok {
		return t, nil
	}
	return nil, missing("encounter type", uuid)
}

func (m *mockEncounters) GetEncounterRoleByUUID(_ context.Context, uuid string) (*encounter.EncounterRole, error) {
	if r, ok := m.roles[uuid]; ok {
		return r, nil
	}
	return nil, missing("encounter role", uuid)
}

func (m *mockEncounters) GetVisitByUUID(_ context.Context, uuid string) (*encounter.Visit, error) {
	if v, ok := m.visits[uuid]; ok {
		return v, nil
	}
	return nil, missing("visit", uuid)
}

// -- clinical, medication --

type mockObs map[string]*clinical.Obs

func (m mockObs) GetByUUID(_ context.Context, uuid string) (*clinical.Obs, error) {
	if o, ok := m[uuid]; ok {
		return o, nil
	}
	return nil, missing("obs", uuid)
}

type mockConditions map[string]*clinical.Condition

func (m mockConditions) GetByUUID(_ context.Context, uuid string) (*clinical.Condition, error) {
	if c, ok := m[uuid]; ok {
		return c, nil
	}
	return nil, missing("condition", uuid)
}

type mockAllergies map[string]*clinical.Allergy

func (m mockAllergies) GetByUUID(_ context.Context, uuid string) (*clinical.Allergy, error) {
	if a, ok := m[uuid]; ok {
		return a, nil
	}
	return nil, missing("allergy", uuid)
}

type mockDrugs map[string]*medication.Drug

func (m mockDrugs) GetByUUID(_ context.Context, uuid string) (*medication.Drug, error) {
	if d, ok := m[uuid]; ok {
		return d, nil
	}
	return nil, missing("drug", uuid)
}

type mockOrders struct {
	orders      map[string]*medication.DrugOrder
	frequencies map[string]*medication.OrderFrequency // by concept uuid
}

func newMockOrders() *mockOrders {
	return &mockOrders{
		orders:      make(map[string]*medication.DrugOrder),
		frequencies: make(map[string]*medication.OrderFrequency),
	}
}

func (m *mockOrders) GetByUUID(_ context.Context, uuid string) (*medication.Order, error) {
	if o, ok := m.orders[uuid]; ok {
		return &o.Order, nil
	}
	return nil, missing("order", uuid)
}

func (m *mockOrders) GetDrugOrderByUUID(_ context.Context, uuid string) (*medication.DrugOrder, error) {
	if o, ok := m.orders[uuid]; ok {
		return o, nil
	}
	return nil, missing("drug order", uuid)
}

func (m *mockOrders) GetOrderFrequencyByConceptUUID(_ context.Context, conceptUUID string) (*medication.OrderFrequency, error) {
	if f, ok := m.frequencies[conceptUUID]; ok {
		return f, nil
	}
	return nil, missing("order frequency", conceptUUID)
}

// -- fixtures --

const (
	ciel   = "http://api.openconceptlab.org/orgs/CIEL/sources/CIEL"
	loinc  = "http://loinc.org"
	locale = "en"
)

var (
	cielSource  = &terminology.ConceptSource{UUID: "ciel-source", Name: "CIEL"}
	loincSource = &terminology.ConceptSource{UUID: "loinc-source", Name: "LOINC"}
	fixedNow    = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
)

func concept(uuid, name string, mappings ...terminology.ConceptMap) *terminology.Concept {
	return &terminology.Concept{
		UUID:     uuid,
		Names:    []terminology.ConceptName{{Name: name, Locale: locale, LocalePreferred: true, Type: terminology.NameFullySpecified}},
		Mappings: mappings,
	}
}

func mapping(source *terminology.ConceptSource, code string, sameAs bool) terminology.ConceptMap {
	mapType := "NARROWER-THAN"
	if sameAs {
		mapType = terminology.MapTypeSameAs
	}
	return terminology.ConceptMap{
		Term:    &terminology.ConceptReferenceTerm{Code: code, Source: source},
		MapType: &terminology.ConceptMapType{Name: mapType},
	}
}

// fixture bundles mock repositories behind a registry.
type fixture struct {
	concepts   *mockConcepts
	sources    *mockSources
	mappings   *mockMappings
	patients   *mockPatients
	persons    *mockPersons
	providers  *mockProviders
	locations  mockLocations
	encounters *mockEncounters
	obs        mockObs
	conditions mockConditions
	allergies  mockAllergies
	drugs      mockDrugs
	orders     *mockOrders
}

func newFixture() *fixture {
	return &fixture{
		concepts:   newMockConcepts(),
		sources:    newMockSources(map[*terminology.ConceptSource]string{cielSource: ciel, loincSource: loinc}),
		mappings:   newMockMappings(),
		patients:   newMockPatients(),
		persons:    &mockPersons{attributeTypes: make(map[string]*identity.PersonAttributeType)},
		providers:  &mockProviders{providers: make(map[string]*identity.Provider)},
		locations:  make(mockLocations),
		encounters: newMockEncounters(),
		obs:        make(mockObs),
		conditions: make(mockConditions),
		allergies:  make(mockAllergies),
		drugs:      make(mockDrugs),
		orders:     newMockOrders(),
	}
}

func (f *fixture) registry() *Registry {
	return NewRegistry(Dependencies{
		Concepts:       f.concepts,
		ConceptSources: f.sources,
		Displays:       mockDisplays{},
		Mappings:       f.mappings,
		Patients:       f.patients,
		Persons:        f.persons,
		Providers:      f.providers,
		Locations:      f.locations,
		Encounters:     f.encounters,
		Obs:            f.obs,
		Conditions:     f.conditions,
		Allergies:      f.allergies,
		Drugs:          f.drugs,
		Orders:         f.orders,
		Settings: Settings{
			Locale:                   locale,
			ContactAttributeTypeUUID: "contact-attr",
			AllergySeverity: AllergySeverityConcepts{
				Mild:          "mild-uuid",
				Moderate:      "moderate-uuid",
				Severe:        "severe-uuid",
				OtherNonCoded: "other-uuid",
			},
		},
		Now:    func() time.Time { return fixedNow },
		Logger: zerolog.Nop(),
	})
}

func (f *fixture) conceptTranslator() *ConceptTranslator {
	return NewConceptTranslator(f.concepts, f.sources, mockDisplays{}, locale, zerolog.Nop())
}
