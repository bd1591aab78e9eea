package translators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

func encounterFixture() *fixture {
	f := newFixture()
	f.patients.patients["pat-1"] = testPatient()
	f.locations["loc-1"] = &admin.Location{UUID: "loc-1", Name: "Ward 1"}
	f.locations["loc-2"] = &admin.Location{UUID: "loc-2", Name: "Clinic"}
	f.mappings.encounterClasses["loc-1"] = "IMP"
	f.providers.providers["prov-1"] = &identity.Provider{UUID: "prov-1", Name: "Dr Who", Identifier: "DR-7"}
	f.encounters.types["adult-initial"] = &encounter.EncounterType{UUID: "adult-initial", Name: "Adult Initial"}
	f.encounters.roles["clinician"] = &encounter.EncounterRole{UUID: "clinician", Name: "Clinician"}
	f.encounters.visits["visit-1"] = &encounter.Visit{UUID: "visit-1", VisitType: &encounter.VisitType{UUID: "opd", Name: "Outpatient"}}
	return f
}

func TestEncounterTranslator_ToFHIR(t *testing.T) {
	f := encounterFixture()
	tr := f.registry().Encounter
	when := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

	e := &encounter.Encounter{
		UUID:              "enc-1",
		Patient:           f.patients.patients["pat-1"],
		EncounterType:     f.encounters.types["adult-initial"],
		Location:          f.locations["loc-1"],
		Visit:             f.encounters.visits["visit-1"],
		EncounterDatetime: when,
		Providers: []*encounter.EncounterProvider{
			{UUID: "ep-1", Provider: f.providers.providers["prov-1"], Role: f.encounters.roles["clinician"]},
			{UUID: "ep-2", Provider: f.providers.providers["prov-1"], Voided: true},
		},
	}

	out, err := tr.ToFHIRResource(context.Background(), e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "in-progress" {
		t.Errorf("expected in-progress for an open visit, got %s", out.Status)
	}
	if out.Class.Code != "IMP" || out.Class.System != SystemActCode || out.Class.Display != "inpatient encounter" {
		t.Errorf("unexpected class %+v", out.Class)
	}
	if !out.Type[0].HasCoding(SystemEncounterType, "adult-initial") {
		t.Errorf("unexpected type %+v", out.Type)
	}
	if out.Subject.Reference != "Patient/pat-1" {
		t.Errorf("unexpected subject %+v", out.Subject)
	}
	if out.Period.Start != "2024-01-10T09:30:00Z" {
		t.Errorf("unexpected period %+v", out.Period)
	}
	if out.Location[0].Location.Reference != "Location/loc-1" || out.Location[0].Location.Display != "Ward 1" {
		t.Errorf("unexpected location %+v", out.Location)
	}
	if out.PartOf.Reference != "Encounter/visit-1" {
		t.Errorf("unexpected partOf %+v", out.PartOf)
	}
	if len(out.Participant) != 1 {
		t.Fatalf("expected one active participant, got %d", len(out.Participant))
	}
	if p := out.Participant[0]; p.Individual.Reference != "Practitioner/prov-1" || p.Type[0].Coding[0].Code != "clinician" {
		t.Errorf("unexpected participant %+v", p)
	}
}

func TestEncounterTranslator_Status(t *testing.T) {
	stopped := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		e    *encounter.Encounter
		want string
	}{
		{"voided", &encounter.Encounter{Voided: true, Visit: &encounter.Visit{}}, "entered-in-error"},
		{"no visit", &encounter.Encounter{}, "unknown"},
		{"open visit", &encounter.Encounter{Visit: &encounter.Visit{}}, "in-progress"},
		{"closed visit", &encounter.Encounter{Visit: &encounter.Visit{StopDatetime: &stopped}}, "finished"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encounterStatus(tt.e); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestEncounterTranslator_DefaultClass(t *testing.T) {
	f := encounterFixture()
	out, err := f.registry().Encounter.ToFHIRResource(context.Background(), &encounter.Encounter{
		UUID:     "enc-2",
		Location: f.locations["loc-2"],
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Class.Code != "AMB" {
		t.Errorf("expected AMB for an unmapped location, got %s", out.Class.Code)
	}
}

func TestEncounterTranslator_ToOpenmrs(t *testing.T) {
	f := encounterFixture()
	tr := f.registry().Encounter

	r := &fhir.Encounter{
		ResourceType: "Encounter",
		Status:       "finished",
		Subject:      &fhir.Reference{Reference: "Patient/pat-1"},
		Type:         []fhir.CodeableConcept{{Coding: []fhir.Coding{{System: SystemEncounterType, Code: "adult-initial"}}}},
		Period:       &fhir.Period{Start: "2024-01-10T09:30:00Z"},
		Location:     []fhir.EncounterLocation{{Location: fhir.Reference{Reference: "Location/loc-2"}}},
		PartOf:       &fhir.Reference{Reference: "Encounter/visit-1"},
		Participant: []fhir.EncounterParticipant{{
			Type:       []fhir.CodeableConcept{{Coding: []fhir.Coding{{Code: "clinician"}}}},
			Individual: &fhir.Reference{Reference: "Practitioner/prov-1"},
		}},
	}

	e, err := tr.ToOpenmrsType(context.Background(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.UUID == "" || e.Patient.UUID != "pat-1" {
		t.Errorf("unexpected encounter %+v", e)
	}
	if e.EncounterType == nil || e.EncounterType.Name != "Adult Initial" {
		t.Errorf("unexpected encounter type %+v", e.EncounterType)
	}
	if e.Location.UUID != "loc-2" || e.Visit.UUID != "visit-1" {
		t.Errorf("unexpected location/visit %+v %+v", e.Location, e.Visit)
	}
	if !e.EncounterDatetime.Equal(time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("unexpected datetime %v", e.EncounterDatetime)
	}
	if len(e.Providers) != 1 || e.Providers[0].Role.UUID != "clinician" {
		t.Errorf("unexpected providers %+v", e.Providers)
	}

	// same participant again is not duplicated
	e, err = tr.UpdateOpenmrsType(context.Background(), e, r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Providers) != 1 {
		t.Errorf("expected providers deduplicated, got %d", len(e.Providers))
	}
}

func TestEncounterTranslator_ToOpenmrs_UnknownSubject(t *testing.T) {
	f := encounterFixture()
	_, err := f.registry().Encounter.ToOpenmrsType(context.Background(), &fhir.Encounter{
		ResourceType: "Encounter",
		Subject:      &fhir.Reference{Reference: "Patient/nobody"},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEncounterTranslator_EnteredInError(t *testing.T) {
	f := encounterFixture()
	e, err := f.registry().Encounter.UpdateOpenmrsType(context.Background(), &encounter.Encounter{UUID: "enc-1"}, &fhir.Encounter{
		ResourceType: "Encounter",
		Status:       "entered-in-error",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.Voided || e.UUID != "enc-1" {
		t.Errorf("expected voided enc-1, got %+v", e)
	}
}
