package translators

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

var conditionClinicalCodes = map[clinical.ConditionClinicalStatus]string{
	clinical.ConditionActive:    "active",
	clinical.ConditionInactive:  "inactive",
	clinical.ConditionHistoryOf: "resolved",
}

func conditionClinicalStatus(code string) (clinical.ConditionClinicalStatus, bool) {
	switch code {
	case "active", "recurrence", "relapse":
		return clinical.ConditionActive, true
	case "inactive", "remission":
		return clinical.ConditionInactive, true
	case "resolved":
		return clinical.ConditionHistoryOf, true
	}
	return "", false
}

// ConditionTranslator maps conditions. A free-text condition is carried in
// the non-coded condition extension and as code.text.
type ConditionTranslator struct {
	concepts      *ConceptTranslator
	patients      *ReferenceTranslator[*identity.Patient]
	encounters    *ReferenceTranslator[*encounter.Encounter]
	practitioners *ReferenceTranslator[*identity.Provider]
}

var _ Translator[*clinical.Condition, *fhir.Condition] = (*ConditionTranslator)(nil)

func NewConditionTranslator(concepts *ConceptTranslator, patients *ReferenceTranslator[*identity.Patient],
	encounters *ReferenceTranslator[*encounter.Encounter], practitioners *ReferenceTranslator[*identity.Provider]) *ConditionTranslator {
	return &ConditionTranslator{concepts: concepts, patients: patients, encounters: encounters, practitioners: practitioners}
}

func (t *ConditionTranslator) ToFHIRResource(ctx context.Context, c *clinical.Condition) (*fhir.Condition, error) {
	if c == nil {
		return nil, nil
	}
	out := &fhir.Condition{
		ResourceType:      fhir.ResourceCondition,
		ID:                c.UUID,
		Meta:              newMeta(c.DateCreated, c.DateChanged),
		Subject:           t.patients.ToFHIRResource(c.Patient),
		Encounter:         t.encounters.ToFHIRResource(c.Encounter),
		Recorder:          t.practitioners.ToFHIRResource(c.Recorder),
		OnsetDateTime:     fhir.FormatTimePtr(c.OnsetDate),
		AbatementDateTime: fhir.FormatTimePtr(c.EndDate),
	}
	if !c.DateCreated.IsZero() {
		out.RecordedDate = fhir.FormatDateTime(c.DateCreated)
	}

	switch {
	case c.Condition.Coded != nil:
		cc, err := t.concepts.ToFHIRResource(ctx, c.Condition.Coded)
		if err != nil {
			return nil, fmt.Errorf("condition code: %w", err)
		}
		out.Code = cc
	case c.Condition.NonCoded != "":
		out.Code = &fhir.CodeableConcept{Text: c.Condition.NonCoded}
		out.Extension = []fhir.Extension{{URL: fhir.ExtensionNonCodedCondition, ValueString: c.Condition.NonCoded}}
	}

	if code, ok := conditionClinicalCodes[c.ClinicalStatus]; ok {
		out.ClinicalStatus = &fhir.CodeableConcept{Coding: []fhir.Coding{{System: SystemConditionClinical, Code: code}}}
	}
	verification := "unconfirmed"
	switch c.VerificationStatus {
	case clinical.ConditionConfirmed:
		verification = "confirmed"
	case clinical.ConditionProvisional:
		verification = "provisional"
	}
	out.VerificationStatus = &fhir.CodeableConcept{Coding: []fhir.Coding{{System: SystemConditionVerification, Code: verification}}}

	if c.AdditionalDetail != "" {
		out.Note = []fhir.Annotation{{Text: c.AdditionalDetail}}
	}
	return out, nil
}

func (t *ConditionTranslator) ToOpenmrsType(ctx context.Context, r *fhir.Condition) (*clinical.Condition, error) {
	return t.UpdateOpenmrsType(ctx, &clinical.Condition{}, r)
}

func (t *ConditionTranslator) UpdateOpenmrsType(ctx context.Context, existing *clinical.Condition, r *fhir.Condition) (*clinical.Condition, error) {
	if r == nil {
		return nil, illegal("condition resource is required")
	}
	if existing == nil {
		existing = &clinical.Condition{}
	}
	c := existing
	switch {
	case r.ID != "":
		c.UUID = r.ID
	case c.UUID == "":
		c.UUID = uuid.New().String()
	}

	if err := t.readCode(ctx, c, r); err != nil {
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
		c.Patient = p
	}
	if r.Encounter != nil {
		e, err := t.encounters.ToOpenmrsType(ctx, r.Encounter)
		if err != nil {
			return nil, err
		}
		c.Encounter = e
	}
	if r.Recorder != nil {
		p, err := t.practitioners.ToOpenmrsType(ctx, r.Recorder)
		if err != nil {
			return nil, err
		}
		c.Recorder = p
	}

	if r.ClinicalStatus != nil {
		if s, ok := conditionClinicalStatus(r.ClinicalStatus.CodeIn(SystemConditionClinical)); ok {
			c.ClinicalStatus = s
		}
	}
	if r.VerificationStatus != nil {
		switch r.VerificationStatus.CodeIn(SystemConditionVerification) {
		case "confirmed":
			c.VerificationStatus = clinical.ConditionConfirmed
		case "provisional":
			c.VerificationStatus = clinical.ConditionProvisional
		case "entered-in-error":
			c.Voided = true
		}
	}

	var err error
	if r.OnsetDateTime != "" {
		if c.OnsetDate, err = fhir.ParseTimePtr(r.OnsetDateTime); err != nil {
			return nil, illegal("onsetDateTime: %v", err)
		}
	}
	if r.AbatementDateTime != "" {
		if c.EndDate, err = fhir.ParseTimePtr(r.AbatementDateTime); err != nil {
			return nil, illegal("abatementDateTime: %v", err)
		}
	}
	if len(r.Note) > 0 {
		c.AdditionalDetail = r.Note[0].Text
	}
	return c, nil
}

func (t *ConditionTranslator) readCode(ctx context.Context, c *clinical.Condition, r *fhir.Condition) error {
	if ext := fhir.FindExtension(r.Extension, fhir.ExtensionNonCodedCondition); ext != nil && ext.ValueString != "" {
		c.Condition = clinical.CodedOrFreeText{NonCoded: ext.ValueString}
		return nil
	}
	if r.Code == nil {
		return nil
	}
	concept, err := t.concepts.ToOpenmrsType(ctx, r.Code)
	if err != nil {
		return err
	}
	switch {
	case concept != nil:
		c.Condition = clinical.CodedOrFreeText{Coded: concept}
	case r.Code.Text != "":
		c.Condition = clinical.CodedOrFreeText{NonCoded: r.Code.Text}
	default:
		return notFound("condition concept", "")
	}
	return nil
}
