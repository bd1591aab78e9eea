package encounter

import (
	"testing"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
)

func TestEncounter_AddProvider_Deduplicates(t *testing.T) {
	clinician := &EncounterRole{UUID: "role-clinician"}
	nurse := &EncounterRole{UUID: "role-nurse"}
	provider := &identity.Provider{UUID: "prov-1"}

	e := &Encounter{}
	e.AddProvider(clinician, provider)
	e.AddProvider(clinician, provider)
	e.AddProvider(nurse, provider)
	e.AddProvider(nil, provider)
	e.AddProvider(nil, provider)

	if len(e.Providers) != 3 {
		t.Errorf("expected 3 provider entries, got %d", len(e.Providers))
	}
}

func TestEncounter_ActiveProviders(t *testing.T) {
	e := &Encounter{Providers: []*EncounterProvider{
		{UUID: "a", Provider: &identity.Provider{UUID: "p1"}},
		{UUID: "b", Provider: &identity.Provider{UUID: "p2"}, Voided: true},
	}}
	active := e.ActiveProviders()
	if len(active) != 1 || active[0].UUID != "a" {
		t.Errorf("expected only provider a, got %+v", active)
	}
}

func TestVisit_IsOpen(t *testing.T) {
	stopped := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !(&Visit{}).IsOpen() {
		t.Error("visit without stop time is open")
	}
	if (&Visit{StopDatetime: &stopped}).IsOpen() {
		t.Error("stopped visit is not open")
	}
	var v *Visit
	if v.IsOpen() {
		t.Error("nil visit is not open")
	}
}
