package translators

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

var observationCategoryDisplays = map[string]string{
	"social-history": "Social History",
	"vital-signs":    "Vital Signs",
	"imaging":        "Imaging",
	"laboratory":     "Laboratory",
	"procedure":      "Procedure",
	"survey":         "Survey",
	"exam":           "Exam",
	"therapy":        "Therapy",
	"activity":       "Activity",
}

type interpretationCode struct {
	code, display string
}

var interpretationCodes = map[clinical.Interpretation]interpretationCode{
	clinical.InterpretationNormal:                {"N", "Normal"},
	clinical.InterpretationAbnormal:              {"A", "Abnormal"},
	clinical.InterpretationCriticallyAbnormal:    {"AA", "Critically abnormal"},
	clinical.InterpretationLow:                   {"L", "Low"},
	clinical.InterpretationHigh:                  {"H", "High"},
	clinical.InterpretationCriticallyLow:         {"LL", "Critically low"},
	clinical.InterpretationCriticallyHigh:        {"HH", "Critically high"},
	clinical.InterpretationOffScaleLow:           {"<", "Off scale low"},
	clinical.InterpretationOffScaleHigh:          {">", "Off scale high"},
	clinical.InterpretationSignificantChangeDown: {"D", "Significant change down"},
	clinical.InterpretationSignificantChangeUp:   {"U", "Significant change up"},
	clinical.InterpretationResistant:             {"R", "Resistant"},
	clinical.InterpretationSusceptible:           {"S", "Susceptible"},
	clinical.InterpretationIntermediate:          {"I", "Intermediate"},
	clinical.InterpretationPositive:              {"POS", "Positive"},
	clinical.InterpretationNegative:              {"NEG", "Negative"},
}

var obsStatuses = map[clinical.ObsStatus]string{
	clinical.ObsPreliminary: "preliminary",
	clinical.ObsFinal:       "final",
	clinical.ObsAmended:     "amended",
}

// ObservationTranslator maps obs. Numeric ranges of the obs concept become
// reference ranges; group members become hasMember references.
type ObservationTranslator struct {
	concepts        *ConceptTranslator
	mappings        terminology.MappingRepository
	patients        *ReferenceTranslator[*identity.Patient]
	encounters      *ReferenceTranslator[*encounter.Encounter]
	observations    *ReferenceTranslator[*clinical.Obs]
	serviceRequests *ReferenceTranslator[*medication.Order]
	logger          zerolog.Logger
}

var _ Translator[*clinical.Obs, *fhir.Observation] = (*ObservationTranslator)(nil)

func NewObservationTranslator(concepts *ConceptTranslator, mappings terminology.MappingRepository,
	patients *ReferenceTranslator[*identity.Patient], encounters *ReferenceTranslator[*encounter.Encounter],
	observations *ReferenceTranslator[*clinical.Obs], serviceRequests *ReferenceTranslator[*medication.Order],
	logger zerolog.Logger) *ObservationTranslator {
	return &ObservationTranslator{
		concepts:        concepts,
		mappings:        mappings,
		patients:        patients,
		encounters:      encounters,
		observations:    observations,
		serviceRequests: serviceRequests,
		logger:          logger,
	}
}

func (t *ObservationTranslator) ToFHIRResource(ctx context.Context, o *clinical.Obs) (*fhir.Observation, error) {
	if o == nil {
		return nil, nil
	}
	out := &fhir.Observation{
		ResourceType: fhir.ResourceObservation,
		ID:           o.UUID,
		Meta:         newMeta(o.DateCreated, o.DateChanged),
		Status:       observationStatus(o),
		Subject:      t.patients.ToFHIRResource(o.Patient),
		Encounter:    t.encounters.ToFHIRResource(o.Encounter),
	}
	if !o.ObsDatetime.IsZero() {
		out.EffectiveDateTime = fhir.FormatDateTime(o.ObsDatetime)
	}
	if !o.DateCreated.IsZero() {
		out.Issued = fhir.FormatDateTime(o.DateCreated)
	}

	code, err := t.concepts.ToFHIRResource(ctx, o.Concept)
	if err != nil {
		return nil, fmt.Errorf("observation code: %w", err)
	}
	out.Code = code

	category, err := t.category(ctx, o.Concept)
	if err != nil {
		return nil, err
	}
	if category != nil {
		out.Category = []fhir.CodeableConcept{*category}
	}

	if err := t.setValue(ctx, out, o); err != nil {
		return nil, err
	}
	if ic, ok := interpretationCodes[o.Interpretation]; ok {
		out.Interpretation = []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{System: SystemObservationInterpretation, Code: ic.code, Display: ic.display}},
		}}
	}
	if o.Concept != nil {
		out.ReferenceRange = referenceRanges(o.Concept.Numeric)
	}
	for _, m := range o.GroupMembers {
		if m.Voided {
			continue
		}
		if ref := t.observations.ToFHIRResource(m); ref != nil {
			out.HasMember = append(out.HasMember, *ref)
		}
	}
	if ref := t.serviceRequests.ToFHIRResource(o.Order); ref != nil {
		out.BasedOn = []fhir.Reference{*ref}
	}
	if o.Comment != "" {
		out.Note = []fhir.Annotation{{Text: o.Comment}}
	}
	return out, nil
}

func observationStatus(o *clinical.Obs) string {
	if o.Voided {
		return "entered-in-error"
	}
	if s, ok := obsStatuses[o.Status]; ok {
		return s
	}
	return "unknown"
}

func (t *ObservationTranslator) category(ctx context.Context, c *terminology.Concept) (*fhir.CodeableConcept, error) {
	if c == nil || c.Class == nil || c.Class.UUID == "" {
		return nil, nil
	}
	code, err := t.mappings.GetObservationCategory(ctx, c.Class.UUID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && code == "") {
		t.logger.Debug().Str("concept_class", c.Class.UUID).Msg("no observation category for concept class")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("observation category: %w", err)
	}
	return &fhir.CodeableConcept{
		Coding: []fhir.Coding{{System: SystemObservationCategory, Code: code, Display: observationCategoryDisplays[code]}},
	}, nil
}

func (t *ObservationTranslator) setValue(ctx context.Context, out *fhir.Observation, o *clinical.Obs) error {
	switch {
	case o.ValueCoded != nil:
		cc, err := t.concepts.ToFHIRResource(ctx, o.ValueCoded)
		if err != nil {
			return fmt.Errorf("observation value: %w", err)
		}
		out.ValueCodeableConcept = cc
	case o.ValueBoolean != nil:
		out.ValueBoolean = fhir.Bool(*o.ValueBoolean)
	case o.ValueNumeric != nil && o.Concept.HasDatatype(terminology.DatatypeBoolean):
		out.ValueBoolean = fhir.Bool(*o.ValueNumeric != 0)
	case o.ValueNumeric != nil:
		q := &fhir.Quantity{Value: fhir.Decimal(*o.ValueNumeric)}
		if o.Concept != nil && o.Concept.Numeric != nil && o.Concept.Numeric.Units != "" {
			q.Unit = o.Concept.Numeric.Units
			q.System = SystemUCUM
			q.Code = o.Concept.Numeric.Units
		}
		out.ValueQuantity = q
	case o.ValueDatetime != nil:
		out.ValueDateTime = fhir.FormatDateTime(*o.ValueDatetime)
	case o.ValueText != "":
		out.ValueString = o.ValueText
	}
	return nil
}

func referenceRanges(n *terminology.ConceptNumeric) []fhir.ObservationReferenceRange {
	if n == nil {
		return nil
	}
	quantity := func(v *float64) *fhir.Quantity {
		if v == nil {
			return nil
		}
		q := &fhir.Quantity{Value: fhir.Decimal(*v)}
		if n.Units != "" {
			q.Unit = n.Units
			q.System = SystemUCUM
			q.Code = n.Units
		}
		return q
	}
	rangeOf := func(low, high *float64, system, code string) *fhir.ObservationReferenceRange {
		if low == nil && high == nil {
			return nil
		}
		return &fhir.ObservationReferenceRange{
			Low:  quantity(low),
			High: quantity(high),
			Type: &fhir.CodeableConcept{Coding: []fhir.Coding{{System: system, Code: code}}},
		}
	}

	var out []fhir.ObservationReferenceRange
	for _, r := range []*fhir.ObservationReferenceRange{
		rangeOf(n.LowNormal, n.HiNormal, SystemReferenceRangeMeaning, "normal"),
		rangeOf(n.LowCritical, n.HiCritical, SystemReferenceRangeMeaning, "treatment"),
		rangeOf(n.LowAbsolute, n.HiAbsolute, SystemAbsoluteReferenceRange, "absolute"),
	} {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

func (t *ObservationTranslator) ToOpenmrsType(ctx context.Context, r *fhir.Observation) (*clinical.Obs, error) {
	return t.UpdateOpenmrsType(ctx, &clinical.Obs{}, r)
}

func (t *ObservationTranslator) UpdateOpenmrsType(ctx context.Context, existing *clinical.Obs, r *fhir.Observation) (*clinical.Obs, error) {
	if r == nil {
		return nil, illegal("observation resource is required")
	}
	if existing == nil {
		existing = &clinical.Obs{}
	}
	o := existing
	switch {
	case r.ID != "":
		o.UUID = r.ID
	case o.UUID == "":
		o.UUID = uuid.New().String()
	}

	if r.Code != nil {
		c, err := t.concepts.ToOpenmrsType(ctx, r.Code)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, notFound("concept", r.Code.Text)
		}
		o.Concept = c
	}

	switch r.Status {
	case "entered-in-error":
		o.Voided = true
	case "":
	default:
		for native, code := range obsStatuses {
			if code == r.Status {
				o.Status = native
			}
		}
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
	if r.EffectiveDateTime != "" {
		d, err := fhir.ParseTimePtr(r.EffectiveDateTime)
		if err != nil {
			return nil, illegal("effectiveDateTime: %v", err)
		}
		o.ObsDatetime = *d
	}

	if err := t.readValue(ctx, o, r); err != nil {
		return nil, err
	}
	o.Interpretation = ""
	for _, cc := range r.Interpretation {
		if i, ok := interpretationFromCode(cc.CodeIn(SystemObservationInterpretation)); ok {
			o.Interpretation = i
			break
		}
	}

	for i := range r.HasMember {
		member, err := t.observations.ToOpenmrsType(ctx, &r.HasMember[i])
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, notFound("observation", fhir.ReferenceID(&r.HasMember[i]))
		}
		o.AddGroupMember(member)
	}
	for i := range r.BasedOn {
		if fhir.ReferenceType(&r.BasedOn[i]) != t.serviceRequests.ResourceType() {
			continue
		}
		order, err := t.serviceRequests.ToOpenmrsType(ctx, &r.BasedOn[i])
		if err != nil {
			return nil, err
		}
		o.Order = order
		break
	}
	if len(r.Note) > 0 {
		notes := make([]string, 0, len(r.Note))
		for _, n := range r.Note {
			if n.Text != "" {
				notes = append(notes, n.Text)
			}
		}
		o.Comment = strings.Join(notes, "\n")
	}
	return o, nil
}

func (t *ObservationTranslator) readValue(ctx context.Context, o *clinical.Obs, r *fhir.Observation) error {
	if !r.HasValue() {
		return nil
	}
	o.ValueNumeric, o.ValueCoded, o.ValueText, o.ValueBoolean, o.ValueDatetime = nil, nil, "", nil, nil

	switch {
	case r.ValueQuantity != nil:
		if r.ValueQuantity.Value == nil {
			return illegal("valueQuantity has no value")
		}
		o.ValueNumeric = fhir.Decimal(*r.ValueQuantity.Value)
	case r.ValueCodeableConcept != nil:
		c, err := t.concepts.ToOpenmrsType(ctx, r.ValueCodeableConcept)
		if err != nil {
			return err
		}
		if c == nil {
			return notFound("value concept", r.ValueCodeableConcept.Text)
		}
		o.ValueCoded = c
	case r.ValueBoolean != nil:
		o.ValueBoolean = fhir.Bool(*r.ValueBoolean)
		if o.Concept.HasDatatype(terminology.DatatypeBoolean) {
			v := 0.0
			if *r.ValueBoolean {
				v = 1
			}
			o.ValueNumeric = &v
		}
	case r.ValueDateTime != "":
		d, err := fhir.ParseTimePtr(r.ValueDateTime)
		if err != nil {
			return illegal("valueDateTime: %v", err)
		}
		o.ValueDatetime = d
	case r.ValueString != "":
		o.ValueText = r.ValueString
	}
	return nil
}

func interpretationFromCode(code string) (clinical.Interpretation, bool) {
	if code == "" {
		return "", false
	}
	for native, ic := range interpretationCodes {
		if ic.code == code {
			return native, true
		}
	}
	return "", false
}
