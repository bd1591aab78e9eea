package translators

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/clinical"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// AllergySeverityConcepts names the concepts that encode allergy severity
// and the "other" concept recorded alongside a free-text allergen.
type AllergySeverityConcepts struct {
	Mild          string
	Moderate      string
	Severe        string
	OtherNonCoded string
}

var allergenCategories = map[clinical.AllergenType]string{
	clinical.AllergenDrug:        "medication",
	clinical.AllergenFood:        "food",
	clinical.AllergenEnvironment: "environment",
}

func allergenType(category string) clinical.AllergenType {
	for native, code := range allergenCategories {
		if code == category {
			return native
		}
	}
	return clinical.AllergenOther
}

type AllergyIntoleranceTranslator struct {
	concepts      *ConceptTranslator
	lookup        ConceptLookup
	severities    AllergySeverityConcepts
	patients      *ReferenceTranslator[*identity.Patient]
	practitioners *ReferenceTranslator[*identity.Provider]
}

var _ Translator[*clinical.Allergy, *fhir.AllergyIntolerance] = (*AllergyIntoleranceTranslator)(nil)

func NewAllergyIntoleranceTranslator(concepts *ConceptTranslator, lookup ConceptLookup, severities AllergySeverityConcepts,
	patients *ReferenceTranslator[*identity.Patient], practitioners *ReferenceTranslator[*identity.Provider]) *AllergyIntoleranceTranslator {
	return &AllergyIntoleranceTranslator{
		concepts:      concepts,
		lookup:        lookup,
		severities:    severities,
		patients:      patients,
		practitioners: practitioners,
	}
}

func (t *AllergyIntoleranceTranslator) ToFHIRResource(ctx context.Context, a *clinical.Allergy) (*fhir.AllergyIntolerance, error) {
	if a == nil {
		return nil, nil
	}
	clinicalStatus := "active"
	if a.Voided {
		clinicalStatus = "inactive"
	}
	out := &fhir.AllergyIntolerance{
		ResourceType: fhir.ResourceAllergyIntolerance,
		ID:           a.UUID,
		Meta:         newMeta(a.DateCreated, a.DateChanged),
		ClinicalStatus: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: SystemAllergyClinical, Code: clinicalStatus}},
		},
		VerificationStatus: &fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: SystemAllergyVerification, Code: "confirmed"}},
		},
		Type:        "allergy",
		Criticality: t.criticality(a.Severity),
		Patient:     t.patients.ToFHIRResource(a.Patient),
		Recorder:    t.practitioners.ToFHIRResource(a.Recorder),
	}
	if !a.DateCreated.IsZero() {
		out.RecordedDate = fhir.FormatDateTime(a.DateCreated)
	}
	if category, ok := allergenCategories[a.Allergen.Type]; ok {
		out.Category = []string{category}
	}

	code, err := t.concepts.ToFHIRResource(ctx, a.Allergen.Coded)
	if err != nil {
		return nil, fmt.Errorf("allergen: %w", err)
	}
	out.Code = code
	if a.Allergen.NonCoded != "" {
		out.Extension = []fhir.Extension{{URL: fhir.ExtensionNonCodedAllergen, ValueString: a.Allergen.NonCoded}}
	}
	if a.Comment != "" {
		out.Note = []fhir.Annotation{{Text: a.Comment}}
	}

	reaction := fhir.AllergyIntoleranceReaction{
		Substance:     code,
		Manifestation: []fhir.CodeableConcept{},
		Severity:      t.severity(a.Severity),
	}
	for _, r := range a.Reactions {
		m, err := t.concepts.ToFHIRResource(ctx, r.Reaction)
		if err != nil {
			return nil, fmt.Errorf("allergy reaction: %w", err)
		}
		if m == nil {
			m = &fhir.CodeableConcept{}
		}
		if r.NonCoded != "" {
			m.Text = r.NonCoded
		}
		reaction.Manifestation = append(reaction.Manifestation, *m)
	}
	if len(reaction.Manifestation) > 0 || reaction.Severity != "" {
		out.Reaction = []fhir.AllergyIntoleranceReaction{reaction}
	}
	return out, nil
}

func (t *AllergyIntoleranceTranslator) severity(c *terminology.Concept) string {
	if c == nil {
		return ""
	}
	switch c.UUID {
	case t.severities.Mild:
		return "mild"
	case t.severities.Moderate:
		return "moderate"
	case t.severities.Severe:
		return "severe"
	}
	return ""
}

func (t *AllergyIntoleranceTranslator) criticality(c *terminology.Concept) string {
	switch t.severity(c) {
	case "severe":
		return "high"
	case "mild", "moderate":
		return "low"
	}
	return "unable-to-assess"
}

func (t *AllergyIntoleranceTranslator) ToOpenmrsType(ctx context.Context, r *fhir.AllergyIntolerance) (*clinical.Allergy, error) {
	return t.UpdateOpenmrsType(ctx, &clinical.Allergy{}, r)
}

func (t *AllergyIntoleranceTranslator) UpdateOpenmrsType(ctx context.Context, existing *clinical.Allergy, r *fhir.AllergyIntolerance) (*clinical.Allergy, error) {
	if r == nil {
		return nil, illegal("allergy intolerance resource is required")
	}
	if existing == nil {
		existing = &clinical.Allergy{}
	}
	a := existing
	switch {
	case r.ID != "":
		a.UUID = r.ID
	case a.UUID == "":
		a.UUID = uuid.New().String()
	}

	if r.Patient != nil {
		p, err := t.patients.ToOpenmrsType(ctx, r.Patient)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, notFound("patient", fhir.ReferenceID(r.Patient))
		}
		a.Patient = p
	}
	if r.Recorder != nil {
		p, err := t.practitioners.ToOpenmrsType(ctx, r.Recorder)
		if err != nil {
			return nil, err
		}
		a.Recorder = p
	}
	if len(r.Category) > 0 {
		a.Allergen.Type = allergenType(r.Category[0])
	}
	if err := t.readAllergen(ctx, a, r); err != nil {
		return nil, err
	}

	switch r.ClinicalStatus.CodeIn(SystemAllergyClinical) {
	case "inactive", "resolved":
		a.Voided = true
	case "active":
		a.Voided = false
	}
	if len(r.Note) > 0 {
		a.Comment = r.Note[0].Text
	}

	if len(r.Reaction) == 0 {
		return a, nil
	}
	reaction := r.Reaction[0]
	severity, err := t.severityConcept(ctx, reaction.Severity)
	if err != nil {
		return nil, err
	}
	if severity != nil {
		a.Severity = severity
	}
	if len(reaction.Manifestation) > 0 {
		a.Reactions = nil
		for i := range reaction.Manifestation {
			m := &reaction.Manifestation[i]
			c, err := t.concepts.ToOpenmrsType(ctx, m)
			if err != nil {
				return nil, err
			}
			ar := &clinical.AllergyReaction{Reaction: c}
			if c == nil {
				if m.Text == "" {
					return nil, notFound("reaction concept", "")
				}
				ar.NonCoded = m.Text
			}
			a.Reactions = append(a.Reactions, ar)
		}
	}
	return a, nil
}

// readAllergen sets the coded allergen from code. A non-coded allergen
// replaces any existing coded one with the configured "other non-coded"
// concept unless code resolves.
func (t *AllergyIntoleranceTranslator) readAllergen(ctx context.Context, a *clinical.Allergy, r *fhir.AllergyIntolerance) error {
	var coded *terminology.Concept
	if r.Code != nil {
		c, err := t.concepts.ToOpenmrsType(ctx, r.Code)
		if err != nil {
			return err
		}
		coded = c
	}
	ext := fhir.FindExtension(r.Extension, fhir.ExtensionNonCodedAllergen)
	if ext == nil || ext.ValueString == "" {
		switch {
		case coded != nil:
			a.Allergen.Coded = coded
		case r.Code != nil:
			return notFound("allergen concept", r.Code.Text)
		}
		a.Allergen.NonCoded = ""
		return nil
	}
	a.Allergen.NonCoded = ext.ValueString
	a.Allergen.Coded = coded
	if coded == nil && t.severities.OtherNonCoded != "" {
		other, err := t.lookup.GetConceptByUUID(ctx, t.severities.OtherNonCoded)
		if err != nil {
			return err
		}
		a.Allergen.Coded = other
	}
	return nil
}

func (t *AllergyIntoleranceTranslator) severityConcept(ctx context.Context, severity string) (*terminology.Concept, error) {
	var conceptUUID string
	switch strings.ToLower(severity) {
	case "mild":
		conceptUUID = t.severities.Mild
	case "moderate":
		conceptUUID = t.severities.Moderate
	case "severe":
		conceptUUID = t.severities.Severe
	}
	if conceptUUID == "" {
		return nil, nil
	}
	c, err := t.lookup.GetConceptByUUID(ctx, conceptUUID)
	if err != nil {
		return nil, fmt.Errorf("severity concept: %w", err)
	}
	return c, nil
}
