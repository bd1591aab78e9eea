package translators

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

type orderConcepts struct {
	oral, tablet, days, twiceDaily *terminology.Concept
}

func medicationRequestFixture() (*fixture, orderConcepts) {
	f := newFixture()
	c := orderConcepts{
		oral:       concept("oral-uuid", "Oral"),
		tablet:     concept("tablet-uuid", "Tablet"),
		days:       concept("days-uuid", "Days"),
		twiceDaily: concept("bid-uuid", "Twice daily", mapping(cielSource, "160858", true)),
	}
	for _, x := range []*terminology.Concept{c.oral, c.tablet, c.days, c.twiceDaily} {
		f.concepts.add(x)
	}
	f.mappings.durationUnits["days-uuid"] = "d"
	f.orders.frequencies["bid-uuid"] = &medication.OrderFrequency{UUID: "freq-bid", Concept: c.twiceDaily}
	f.patients.patients["pat-1"] = testPatient()
	f.encounters.encounters["enc-1"] = &encounter.Encounter{UUID: "enc-1"}
	f.providers.providers["prov-1"] = &identity.Provider{UUID: "prov-1", Name: "Dr Who"}
	f.drugs["drug-1"] = &medication.Drug{UUID: "drug-1", Name: "Aspirin 81mg", Concept: concept("aspirin-uuid", "Aspirin")}
	return f, c
}

func TestMedicationRequestTranslator_ToFHIR(t *testing.T) {
	f, c := medicationRequestFixture()
	tr := f.registry().MedicationRequest
	activated := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	expires := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	o := &medication.DrugOrder{
		Order: medication.Order{
			UUID:               "order-1",
			OrderNumber:        "ORD-42",
			Action:             medication.ActionNew,
			Urgency:            medication.UrgencyStat,
			Patient:            f.patients.patients["pat-1"],
			Encounter:          f.encounters.encounters["enc-1"],
			Orderer:            f.providers.providers["prov-1"],
			PreviousOrder:      &medication.Order{UUID: "order-0"},
			DateActivated:      activated,
			AutoExpireDate:     &expires,
			CommentToFulfiller: "dispense in blister pack",
			Instructions:       "take with food",
		},
		Drug:               f.drugs["drug-1"],
		Dose:               fhir.Decimal(1),
		DoseUnits:          c.tablet,
		Route:              c.oral,
		Frequency:          f.orders.frequencies["bid-uuid"],
		Duration:           fhir.Int(10),
		DurationUnits:      c.days,
		Quantity:           fhir.Decimal(20),
		QuantityUnits:      c.tablet,
		NumRefills:         fhir.Int(2),
		AsNeededCondition:  "pain",
		DosingInstructions: "1 tablet twice daily",
	}

	out, err := tr.ToFHIRResource(context.Background(), o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != "active" || out.Intent != "order" || out.Priority != "stat" {
		t.Errorf("unexpected status/intent/priority %s %s %s", out.Status, out.Intent, out.Priority)
	}
	if out.Identifier[0].Value != "ORD-42" || out.AuthoredOn != "2024-03-01T09:00:00Z" {
		t.Errorf("unexpected identifier/authoredOn %+v %s", out.Identifier, out.AuthoredOn)
	}
	if out.MedicationReference.Reference != "Medication/drug-1" || out.MedicationReference.Display != "Aspirin 81mg" {
		t.Errorf("unexpected medication %+v", out.MedicationReference)
	}
	if out.Requester.Reference != "Practitioner/prov-1" || out.PriorPrescription.Reference != "MedicationRequest/order-0" {
		t.Errorf("unexpected requester/prior %+v %+v", out.Requester, out.PriorPrescription)
	}

	d := out.DosageInstruction[0]
	if d.Text != "1 tablet twice daily" || d.PatientInstruction != "take with food" {
		t.Errorf("unexpected dosage text %+v", d)
	}
	if d.AsNeededCodeableConcept == nil || d.AsNeededCodeableConcept.Text != "pain" || d.AsNeededBoolean != nil {
		t.Errorf("unexpected asNeeded %+v %v", d.AsNeededCodeableConcept, d.AsNeededBoolean)
	}
	if d.Route.Text != "Oral" || *d.DoseAndRate[0].DoseQuantity.Value != 1 || d.DoseAndRate[0].DoseQuantity.Code != "tablet-uuid" {
		t.Errorf("unexpected route/dose %+v", d)
	}
	if !d.Timing.Code.HasCoding(ciel, "160858") {
		t.Errorf("unexpected timing code %+v", d.Timing.Code)
	}
	if *d.Timing.Repeat.Duration != 10 || d.Timing.Repeat.DurationUnit != "d" {
		t.Errorf("unexpected repeat %+v", d.Timing.Repeat)
	}

	dr := out.DispenseRequest
	if *dr.Quantity.Value != 20 || *dr.NumberOfRepeatsAllowed != 2 {
		t.Errorf("unexpected dispense request %+v", dr)
	}
	if dr.ValidityPeriod.Start != "2024-03-01T09:00:00Z" || dr.ValidityPeriod.End != "2024-04-01T00:00:00Z" {
		t.Errorf("unexpected validity period %+v", dr.ValidityPeriod)
	}
	if out.Note[0].Text != "dispense in blister pack" {
		t.Errorf("unexpected note %+v", out.Note)
	}
}

func TestMedicationRequestTranslator_Status(t *testing.T) {
	f, _ := medicationRequestFixture()
	tr := f.registry().MedicationRequest
	past := fixedNow.Add(-48 * time.Hour)
	yesterday := fixedNow.Add(-24 * time.Hour)
	tomorrow := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name  string
		order medication.Order
		want  string
	}{
		{"voided", medication.Order{Voided: true, DateActivated: past}, "entered-in-error"},
		{"discontinue action", medication.Order{Action: medication.ActionDiscontinue, DateActivated: past}, "stopped"},
		{"stopped", medication.Order{DateActivated: past, DateStopped: &yesterday}, "stopped"},
		{"expired", medication.Order{DateActivated: past, AutoExpireDate: &yesterday}, "completed"},
		{"active", medication.Order{DateActivated: past, AutoExpireDate: &tomorrow}, "active"},
		{"scheduled later", medication.Order{DateActivated: past, Urgency: medication.UrgencyOnScheduledDate, ScheduledDate: &tomorrow}, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.status(&medication.DrugOrder{Order: tt.order}); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestMedicationRequestTranslator_NonCoded(t *testing.T) {
	f, _ := medicationRequestFixture()
	tr := f.registry().MedicationRequest

	out, err := tr.ToFHIRResource(context.Background(), &medication.DrugOrder{
		Order:        medication.Order{UUID: "order-2", DateActivated: fixedNow},
		DrugNonCoded: "Grandma's tonic",
		AsNeeded:     true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.MedicationCodeableConcept == nil || out.MedicationCodeableConcept.Text != "Grandma's tonic" {
		t.Errorf("unexpected medication %+v", out.MedicationCodeableConcept)
	}
	if d := out.DosageInstruction[0]; d.AsNeededBoolean == nil || !*d.AsNeededBoolean {
		t.Errorf("expected asNeededBoolean true, got %+v", d)
	}

	o, err := tr.ToOpenmrsType(context.Background(), out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.DrugNonCoded != "Grandma's tonic" || o.Drug != nil || !o.AsNeeded {
		t.Errorf("unexpected order %+v", o)
	}
}

func TestMedicationRequestTranslator_ToOpenmrs(t *testing.T) {
	f, c := medicationRequestFixture()
	tr := f.registry().MedicationRequest

	r := &fhir.MedicationRequest{
		ResourceType:        "MedicationRequest",
		Status:              "active",
		Intent:              "order",
		Priority:            "urgent",
		Identifier:          []fhir.Identifier{{Value: "ORD-7"}},
		MedicationReference: &fhir.Reference{Reference: "Medication/drug-1"},
		Subject:             &fhir.Reference{Reference: "Patient/pat-1"},
		Encounter:           &fhir.Reference{Reference: "Encounter/enc-1"},
		Requester:           &fhir.Reference{Reference: "Practitioner/prov-1"},
		AuthoredOn:          "2024-03-01T09:00:00Z",
		DosageInstruction: []fhir.Dosage{{
			Text:  "1 tablet twice daily",
			Route: &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "oral-uuid"}}},
			DoseAndRate: []fhir.DosageDoseAndRate{{
				DoseQuantity: &fhir.Quantity{Value: fhir.Decimal(1), Code: "tablet-uuid"},
			}},
			Timing: &fhir.Timing{
				Code:   &fhir.CodeableConcept{Coding: []fhir.Coding{{System: ciel, Code: "160858"}}},
				Repeat: &fhir.TimingRepeat{Duration: fhir.Decimal(5), DurationUnit: "d"},
			},
		}},
		DispenseRequest: &fhir.MedicationRequestDispenseRequest{
			Quantity:               &fhir.Quantity{Value: fhir.Decimal(10), Code: "tablet-uuid"},
			NumberOfRepeatsAllowed: fhir.Int(1),
			ValidityPeriod:         &fhir.Period{End: "2024-04-01T00:00:00Z"},
		},
		Note: []fhir.Annotation{{Text: "blister pack"}},
	}

	o, err := tr.ToOpenmrsType(context.Background(), r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Action != medication.ActionNew || o.Urgency != medication.UrgencyStat || o.OrderNumber != "ORD-7" {
		t.Errorf("unexpected action/urgency/number %s %s %s", o.Action, o.Urgency, o.OrderNumber)
	}
	if o.Drug.UUID != "drug-1" || o.Concept == nil || o.Concept.UUID != "aspirin-uuid" {
		t.Errorf("unexpected drug/concept %+v %+v", o.Drug, o.Concept)
	}
	if o.Patient.UUID != "pat-1" || o.Encounter.UUID != "enc-1" || o.Orderer.UUID != "prov-1" {
		t.Error("unexpected references")
	}
	if o.Route != c.oral || o.DoseUnits != c.tablet || *o.Dose != 1 {
		t.Errorf("unexpected route/dose %+v %+v %v", o.Route, o.DoseUnits, o.Dose)
	}
	if o.Frequency == nil || o.Frequency.UUID != "freq-bid" {
		t.Errorf("unexpected frequency %+v", o.Frequency)
	}
	if *o.Duration != 5 || o.DurationUnits != c.days {
		t.Errorf("unexpected duration %v %+v", o.Duration, o.DurationUnits)
	}
	if *o.Quantity != 10 || o.QuantityUnits != c.tablet || *o.NumRefills != 1 {
		t.Errorf("unexpected dispense fields")
	}
	if o.AutoExpireDate == nil || !o.AutoExpireDate.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected auto expire date %v", o.AutoExpireDate)
	}
	if o.CommentToFulfiller != "blister pack" {
		t.Errorf("unexpected comment %q", o.CommentToFulfiller)
	}
}

func TestMedicationRequestTranslator_StopAndVoid(t *testing.T) {
	f, _ := medicationRequestFixture()
	tr := f.registry().MedicationRequest

	o, err := tr.UpdateOpenmrsType(context.Background(), &medication.DrugOrder{Order: medication.Order{UUID: "order-1"}},
		&fhir.MedicationRequest{ResourceType: "MedicationRequest", Status: "stopped"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.DateStopped == nil || !o.DateStopped.Equal(fixedNow) {
		t.Errorf("expected order stopped at now, got %v", o.DateStopped)
	}

	o, err = tr.UpdateOpenmrsType(context.Background(), o, &fhir.MedicationRequest{ResourceType: "MedicationRequest", Status: "entered-in-error"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.Voided || !o.DateStopped.Equal(fixedNow) {
		t.Errorf("expected voided order keeping its stop date, got %+v", o)
	}
}

func TestMedicationRequestTranslator_UnknownFrequency(t *testing.T) {
	f, c := medicationRequestFixture()
	delete(f.orders.frequencies, c.twiceDaily.UUID)

	_, err := f.registry().MedicationRequest.ToOpenmrsType(context.Background(), &fhir.MedicationRequest{
		ResourceType: "MedicationRequest",
		DosageInstruction: []fhir.Dosage{{
			Timing: &fhir.Timing{Code: &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "bid-uuid"}}}},
		}},
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMedicationRequestTranslator_UpdateToCodedMedication(t *testing.T) {
	f, _ := medicationRequestFixture()
	aspirin := concept("aspirin-uuid", "Aspirin")
	f.concepts.add(aspirin)
	tr := f.registry().MedicationRequest

	coded := &fhir.MedicationRequest{
		ResourceType:              "MedicationRequest",
		MedicationCodeableConcept: &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: "aspirin-uuid"}}},
	}

	tests := []struct {
		name     string
		existing *medication.DrugOrder
	}{
		{"from non-coded", &medication.DrugOrder{Order: medication.Order{UUID: "order-3"}, DrugNonCoded: "Grandma's tonic"}},
		{"from drug", &medication.DrugOrder{Order: medication.Order{UUID: "order-4"}, Drug: f.drugs["drug-1"]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := tr.UpdateOpenmrsType(context.Background(), tt.existing, coded)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.Drug != nil || o.DrugNonCoded != "" || o.Concept != aspirin {
				t.Fatalf("unexpected medication drug=%+v nonCoded=%q concept=%+v", o.Drug, o.DrugNonCoded, o.Concept)
			}

			out, err := tr.ToFHIRResource(context.Background(), o)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.MedicationReference != nil {
				t.Errorf("unexpected medication reference %+v", out.MedicationReference)
			}
			cc := out.MedicationCodeableConcept
			if cc == nil || len(cc.Coding) == 0 || cc.Coding[0].Code != "aspirin-uuid" {
				t.Errorf("unexpected medication %+v", cc)
			}
		})
	}
}

func TestMedicationRequestTranslator_Duration(t *testing.T) {
	f, _ := medicationRequestFixture()
	tr := f.registry().MedicationRequest

	tests := []struct {
		name     string
		duration float64
		want     int
		wantErr  bool
	}{
		{"whole", 7, 7, false},
		{"zero", 0, 0, false},
		{"fractional", 1.5, 0, true},
		{"negative", -2, 0, true},
		{"too large", 1e12, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := tr.ToOpenmrsType(context.Background(), &fhir.MedicationRequest{
				ResourceType: "MedicationRequest",
				DosageInstruction: []fhir.Dosage{{
					Timing: &fhir.Timing{Repeat: &fhir.TimingRepeat{Duration: fhir.Decimal(tt.duration)}},
				}},
			})
			if tt.wantErr {
				if !errors.Is(err, ErrIllegalArgument) {
					t.Fatalf("expected ErrIllegalArgument, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.Duration == nil || *o.Duration != tt.want {
				t.Errorf("duration = %v, want %d", o.Duration, tt.want)
			}
		})
	}
}
