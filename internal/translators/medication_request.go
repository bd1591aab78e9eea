package translators

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

var urgencyPriorities = map[medication.Urgency]string{
	medication.UrgencyRoutine:         "routine",
	medication.UrgencyStat:            "stat",
	medication.UrgencyOnScheduledDate: "routine",
}

func urgencyFromPriority(priority string) (medication.Urgency, bool) {
	switch priority {
	case "routine":
		return medication.UrgencyRoutine, true
	case "stat", "asap", "urgent":
		return medication.UrgencyStat, true
	}
	return "", false
}

// MedicationRequestTranslator maps drug orders. Status depends on the time
// of translation, so the translator carries a clock.
type MedicationRequestTranslator struct {
	concepts      *ConceptTranslator
	mappings      terminology.MappingRepository
	orders        medication.OrderRepository
	patients      *ReferenceTranslator[*identity.Patient]
	encounters    *ReferenceTranslator[*encounter.Encounter]
	practitioners *ReferenceTranslator[*identity.Provider]
	medications   *ReferenceTranslator[*medication.Drug]
	requests      *ReferenceTranslator[*medication.Order]
	now           func() time.Time
	logger        zerolog.Logger
}

var _ Translator[*medication.DrugOrder, *fhir.MedicationRequest] = (*MedicationRequestTranslator)(nil)

// MedicationRequestRefs groups the reference translators a medication request needs.
type MedicationRequestRefs struct {
	Patients      *ReferenceTranslator[*identity.Patient]
	Encounters    *ReferenceTranslator[*encounter.Encounter]
	Practitioners *ReferenceTranslator[*identity.Provider]
	Medications   *ReferenceTranslator[*medication.Drug]
	Requests      *ReferenceTranslator[*medication.Order]
}

func NewMedicationRequestTranslator(concepts *ConceptTranslator, mappings terminology.MappingRepository, orders medication.OrderRepository,
	refs MedicationRequestRefs, now func() time.Time, logger zerolog.Logger) *MedicationRequestTranslator {
	if now == nil {
		now = time.Now
	}
	return &MedicationRequestTranslator{
		concepts:      concepts,
		mappings:      mappings,
		orders:        orders,
		patients:      refs.Patients,
		encounters:    refs.Encounters,
		practitioners: refs.Practitioners,
		medications:   refs.Medications,
		requests:      refs.Requests,
		now:           now,
		logger:        logger,
	}
}

func (t *MedicationRequestTranslator) ToFHIRResource(ctx context.Context, o *medication.DrugOrder) (*fhir.MedicationRequest, error) {
	if o == nil {
		return nil, nil
	}
	out := &fhir.MedicationRequest{
		ResourceType:      fhir.ResourceMedicationRequest,
		ID:                o.UUID,
		Meta:              newMeta(o.DateCreated, o.DateChanged),
		Status:            t.status(o),
		Intent:            "order",
		Priority:          urgencyPriorities[o.Urgency],
		Subject:           t.patients.ToFHIRResource(o.Patient),
		Encounter:         t.encounters.ToFHIRResource(o.Encounter),
		Requester:         t.practitioners.ToFHIRResource(o.Orderer),
		PriorPrescription: t.requests.ToFHIRResource(o.PreviousOrder),
	}
	if o.OrderNumber != "" {
		out.Identifier = []fhir.Identifier{{Use: "usual", Value: o.OrderNumber}}
	}
	if !o.DateActivated.IsZero() {
		out.AuthoredOn = fhir.FormatDateTime(o.DateActivated)
	}
	if o.CommentToFulfiller != "" {
		out.Note = []fhir.Annotation{{Text: o.CommentToFulfiller}}
	}

	switch {
	case o.Drug != nil:
		out.MedicationReference = t.medications.ToFHIRResource(o.Drug)
	case o.DrugNonCoded != "":
		out.MedicationCodeableConcept = &fhir.CodeableConcept{Text: o.DrugNonCoded}
	case o.Concept != nil:
		cc, err := t.concepts.ToFHIRResource(ctx, o.Concept)
		if err != nil {
			return nil, fmt.Errorf("medication concept: %w", err)
		}
		out.MedicationCodeableConcept = cc
	}

	dosage, err := t.dosage(ctx, o)
	if err != nil {
		return nil, err
	}
	out.DosageInstruction = []fhir.Dosage{*dosage}
	out.DispenseRequest = t.dispenseRequest(o)
	return out, nil
}

func (t *MedicationRequestTranslator) status(o *medication.DrugOrder) string {
	now := t.now()
	switch {
	case o.Voided:
		return "entered-in-error"
	case o.Action == medication.ActionDiscontinue || o.IsDiscontinued(now):
		return "stopped"
	case o.IsExpired(now):
		return "completed"
	case o.IsActive(now):
		return "active"
	default:
		return "unknown"
	}
}

func (t *MedicationRequestTranslator) quantity(value *float64, units *terminology.Concept) *fhir.Quantity {
	if value == nil {
		return nil
	}
	q := &fhir.Quantity{Value: fhir.Decimal(*value)}
	if units != nil {
		q.Unit = units.PreferredName(t.concepts.locale)
		q.Code = units.UUID
	}
	return q
}

func (t *MedicationRequestTranslator) dosage(ctx context.Context, o *medication.DrugOrder) (*fhir.Dosage, error) {
	d := &fhir.Dosage{
		Text:               o.DosingInstructions,
		PatientInstruction: o.Instructions,
	}
	if o.AsNeededCondition != "" {
		d.AsNeededCodeableConcept = &fhir.CodeableConcept{Text: o.AsNeededCondition}
	} else {
		d.AsNeededBoolean = fhir.Bool(o.AsNeeded)
	}

	route, err := t.concepts.ToFHIRResource(ctx, o.Route)
	if err != nil {
		return nil, fmt.Errorf("dosage route: %w", err)
	}
	d.Route = route
	if q := t.quantity(o.Dose, o.DoseUnits); q != nil {
		d.DoseAndRate = []fhir.DosageDoseAndRate{{DoseQuantity: q}}
	}

	timing := &fhir.Timing{}
	if o.Frequency != nil {
		if timing.Code, err = t.concepts.ToFHIRResource(ctx, o.Frequency.Concept); err != nil {
			return nil, fmt.Errorf("dosage frequency: %w", err)
		}
	}
	if o.Duration != nil {
		repeat := &fhir.TimingRepeat{Duration: fhir.Decimal(float64(*o.Duration))}
		if o.DurationUnits != nil {
			unit, err := t.mappings.GetDurationUnit(ctx, o.DurationUnits.UUID)
			switch {
			case errors.Is(err, db.ErrNotFound):
				t.logger.Warn().Str("concept", o.DurationUnits.UUID).Msg("duration unit concept has no unit of time")
			case err != nil:
				return nil, fmt.Errorf("duration unit: %w", err)
			default:
				repeat.DurationUnit = unit
			}
		}
		timing.Repeat = repeat
	}
	if timing.Code != nil || timing.Repeat != nil {
		d.Timing = timing
	}
	return d, nil
}

func (t *MedicationRequestTranslator) dispenseRequest(o *medication.DrugOrder) *fhir.MedicationRequestDispenseRequest {
	dr := &fhir.MedicationRequestDispenseRequest{
		Quantity: t.quantity(o.Quantity, o.QuantityUnits),
	}
	if o.NumRefills != nil {
		dr.NumberOfRepeatsAllowed = fhir.Int(*o.NumRefills)
	}
	if !o.DateActivated.IsZero() || o.AutoExpireDate != nil {
		dr.ValidityPeriod = &fhir.Period{End: fhir.FormatTimePtr(o.AutoExpireDate)}
		if !o.DateActivated.IsZero() {
			dr.ValidityPeriod.Start = fhir.FormatDateTime(o.DateActivated)
		}
	}
	if dr.Quantity == nil && dr.NumberOfRepeatsAllowed == nil && dr.ValidityPeriod == nil {
		return nil
	}
	return dr
}

func (t *MedicationRequestTranslator) ToOpenmrsType(ctx context.Context, r *fhir.MedicationRequest) (*medication.DrugOrder, error) {
	return t.UpdateOpenmrsType(ctx, &medication.DrugOrder{}, r)
}

// UpdateOpenmrsType applies r onto existing. A stopped or cancelled status
// stops an order that is still running; entered-in-error voids it.
func (t *MedicationRequestTranslator) UpdateOpenmrsType(ctx context.Context, existing *medication.DrugOrder, r *fhir.MedicationRequest) (*medication.DrugOrder, error) {
	if r == nil {
		return nil, illegal("medication request resource is required")
	}
	if existing == nil {
		existing = &medication.DrugOrder{}
	}
	o := existing
	switch {
	case r.ID != "":
		o.UUID = r.ID
	case o.UUID == "":
		o.UUID = uuid.New().String()
	}
	if o.Action == "" {
		o.Action = medication.ActionNew
	}

	if err := t.readMedication(ctx, o, r); err != nil {
		return nil, err
	}
	if r.Subject != nil {
		p, err := t.patients.ToOpenmrsType(ctx, r.Subject)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, notFound("patient", fhir.ReferenceID(r.Subject))
		}
		o.Patient = p
	}
	if r.Encounter != nil {
		e, err := t.encounters.ToOpenmrsType(ctx, r.Encounter)
		if err != nil {
			return nil, err
		}
		o.Encounter = e
	}
	if r.Requester != nil {
		p, err := t.practitioners.ToOpenmrsType(ctx, r.Requester)
		if err != nil {
			return nil, err
		}
		o.Orderer = p
	}
	if r.PriorPrescription != nil {
		prev, err := t.requests.ToOpenmrsType(ctx, r.PriorPrescription)
		if err != nil {
			return nil, err
		}
		o.PreviousOrder = prev
	}
	if r.AuthoredOn != "" {
		d, err := fhir.ParseTimePtr(r.AuthoredOn)
		if err != nil {
			return nil, illegal("authoredOn: %v", err)
		}
		o.DateActivated = *d
	}
	if u, ok := urgencyFromPriority(r.Priority); ok {
		o.Urgency = u
	}
	for _, id := range r.Identifier {
		if id.Value != "" {
			o.OrderNumber = id.Value
			break
		}
	}
	if len(r.Note) > 0 {
		o.CommentToFulfiller = r.Note[0].Text
	}

	if len(r.DosageInstruction) > 0 {
		if err := t.readDosage(ctx, o, &r.DosageInstruction[0]); err != nil {
			return nil, err
		}
	}
	if err := t.readDispenseRequest(ctx, o, r.DispenseRequest); err != nil {
		return nil, err
	}

	switch r.Status {
	case "entered-in-error":
		o.Voided = true
	case "stopped", "cancelled":
		if o.DateStopped == nil {
			now := t.now()
			o.DateStopped = &now
		}
	}
	return o, nil
}

func (t *MedicationRequestTranslator) readMedication(ctx context.Context, o *medication.DrugOrder, r *fhir.MedicationRequest) error {
	switch {
	case r.MedicationReference != nil:
		drug, err := t.medications.ToOpenmrsType(ctx, r.MedicationReference)
		if err != nil {
			return err
		}
		if drug == nil {
			return notFound("medication", fhir.ReferenceID(r.MedicationReference))
		}
		o.Drug = drug
		o.DrugNonCoded = ""
		if drug.Concept != nil {
			o.Concept = drug.Concept
		}
	case r.MedicationCodeableConcept != nil:
		c, err := t.concepts.ToOpenmrsType(ctx, r.MedicationCodeableConcept)
		if err != nil {
			return err
		}
		if c != nil {
			o.Drug = nil
			o.DrugNonCoded = ""
			o.Concept = c
			return nil
		}
		if r.MedicationCodeableConcept.Text == "" {
			return notFound("medication concept", "")
		}
		o.Drug = nil
		o.DrugNonCoded = r.MedicationCodeableConcept.Text
	}
	return nil
}

func (t *MedicationRequestTranslator) conceptByCode(ctx context.Context, code string) (*terminology.Concept, error) {
	if code == "" {
		return nil, nil
	}
	return t.concepts.ToOpenmrsType(ctx, &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: code}}})
}

func (t *MedicationRequestTranslator) readDosage(ctx context.Context, o *medication.DrugOrder, d *fhir.Dosage) error {
	o.DosingInstructions = d.Text
	o.Instructions = d.PatientInstruction
	switch {
	case d.AsNeededCodeableConcept != nil:
		o.AsNeeded = true
		o.AsNeededCondition = d.AsNeededCodeableConcept.Text
	case d.AsNeededBoolean != nil:
		o.AsNeeded = *d.AsNeededBoolean
		o.AsNeededCondition = ""
	}

	var err error
	if d.Route != nil {
		if o.Route, err = t.concepts.ToOpenmrsType(ctx, d.Route); err != nil {
			return err
		}
	}
	if len(d.DoseAndRate) > 0 && d.DoseAndRate[0].DoseQuantity != nil {
		q := d.DoseAndRate[0].DoseQuantity
		o.Dose = q.Value
		if o.DoseUnits, err = t.conceptByCode(ctx, q.Code); err != nil {
			return err
		}
	}
	if d.Timing == nil {
		return nil
	}

	if d.Timing.Code != nil {
		c, err := t.concepts.ToOpenmrsType(ctx, d.Timing.Code)
		if err != nil {
			return err
		}
		if c != nil {
			freq, err := t.orders.GetOrderFrequencyByConceptUUID(ctx, c.UUID)
			switch {
			case errors.Is(err, db.ErrNotFound):
				return notFound("order frequency", c.UUID)
			case err != nil:
				return fmt.Errorf("order frequency: %w", err)
			}
			o.Frequency = freq
		}
	}
	if rep := d.Timing.Repeat; rep != nil && rep.Duration != nil {
		d := *rep.Duration
		if d != math.Trunc(d) || d < 0 || d > math.MaxInt32 {
			return illegal("timing.repeat.duration %v is not a whole number of units", d)
		}
		duration := int(d)
		o.Duration = &duration
		if rep.DurationUnit != "" {
			conceptUUID, err := t.mappings.GetDurationUnitConceptUUID(ctx, rep.DurationUnit)
			switch {
			case errors.Is(err, db.ErrNotFound):
				t.logger.Warn().Str("unit", rep.DurationUnit).Msg("no concept for duration unit")
			case err != nil:
				return fmt.Errorf("duration unit: %w", err)
			default:
				if o.DurationUnits, err = t.conceptByCode(ctx, conceptUUID); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (t *MedicationRequestTranslator) readDispenseRequest(ctx context.Context, o *medication.DrugOrder, dr *fhir.MedicationRequestDispenseRequest) error {
	if dr == nil {
		return nil
	}
	if dr.Quantity != nil {
		o.Quantity = dr.Quantity.Value
		units, err := t.conceptByCode(ctx, dr.Quantity.Code)
		if err != nil {
			return err
		}
		o.QuantityUnits = units
	}
	if dr.NumberOfRepeatsAllowed != nil {
		n := *dr.NumberOfRepeatsAllowed
		o.NumRefills = &n
	}
	if dr.ValidityPeriod != nil && dr.ValidityPeriod.End != "" {
		end, err := fhir.ParseTimePtr(dr.ValidityPeriod.End)
		if err != nil {
			return illegal("validityPeriod.end: %v", err)
		}
		o.AutoExpireDate = end
	}
	return nil
}
