package translators

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// MedicationTranslator maps drugs. Drug fields without a FHIR element travel
// in the medicine extension.
type MedicationTranslator struct {
	concepts *ConceptTranslator
}

var _ Translator[*medication.Drug, *fhir.Medication] = (*MedicationTranslator)(nil)

func NewMedicationTranslator(concepts *ConceptTranslator) *MedicationTranslator {
	return &MedicationTranslator{concepts: concepts}
}

func (t *MedicationTranslator) ToFHIRResource(ctx context.Context, d *medication.Drug) (*fhir.Medication, error) {
	if d == nil {
		return nil, nil
	}
	out := &fhir.Medication{
		ResourceType: fhir.ResourceMedication,
		ID:           d.UUID,
		Meta:         newMeta(d.DateCreated, d.DateChanged),
		Status:       "active",
	}
	if d.Retired {
		out.Status = "inactive"
	}

	var err error
	if out.Code, err = t.concepts.ToFHIRResource(ctx, d.Concept); err != nil {
		return nil, fmt.Errorf("medication code: %w", err)
	}
	if out.Form, err = t.concepts.ToFHIRResource(ctx, d.DosageForm); err != nil {
		return nil, fmt.Errorf("medication form: %w", err)
	}
	for _, ing := range d.Ingredients {
		item, err := t.concepts.ToFHIRResource(ctx, ing.Ingredient)
		if err != nil {
			return nil, fmt.Errorf("medication ingredient: %w", err)
		}
		mi := fhir.MedicationIngredient{ItemCodeableConcept: item}
		if ing.Strength != nil {
			q := &fhir.Quantity{Value: fhir.Decimal(*ing.Strength)}
			if ing.Units != nil {
				q.Code = ing.Units.UUID
				q.Unit = ing.Units.PreferredName(t.concepts.locale)
			}
			mi.Strength = &fhir.Ratio{Numerator: q}
		}
		out.Ingredient = append(out.Ingredient, mi)
	}

	ext := fhir.Extension{URL: fhir.ExtensionMedicine}
	ext.AddStringField("drugName", d.Name)
	ext.AddStringField("strength", d.Strength)
	ext.AddDecimalField("maximumDailyDose", d.MaximumDailyDose)
	ext.AddDecimalField("minimumDailyDose", d.MinimumDailyDose)
	if len(ext.Extension) > 0 {
		out.Extension = []fhir.Extension{ext}
	}
	return out, nil
}

func (t *MedicationTranslator) ToOpenmrsType(ctx context.Context, r *fhir.Medication) (*medication.Drug, error) {
	return t.UpdateOpenmrsType(ctx, &medication.Drug{}, r)
}

func (t *MedicationTranslator) UpdateOpenmrsType(ctx context.Context, existing *medication.Drug, r *fhir.Medication) (*medication.Drug, error) {
	if r == nil {
		return nil, illegal("medication resource is required")
	}
	if existing == nil {
		existing = &medication.Drug{}
	}
	d := existing
	switch {
	case r.ID != "":
		d.UUID = r.ID
	case d.UUID == "":
		d.UUID = uuid.New().String()
	}

	if r.Code != nil {
		c, err := t.concepts.ToOpenmrsType(ctx, r.Code)
		if err != nil {
			return nil, err
		}
		if c == nil {
			return nil, notFound("concept", r.Code.Text)
		}
		d.Concept = c
	}
	if r.Form != nil {
		form, err := t.concepts.ToOpenmrsType(ctx, r.Form)
		if err != nil {
			return nil, err
		}
		d.DosageForm = form
	}
	switch r.Status {
	case "active":
		d.Retired = false
	case "inactive":
		d.Retired = true
	}

	if len(r.Ingredient) > 0 {
		d.Ingredients = nil
		for _, mi := range r.Ingredient {
			ing, err := t.concepts.ToOpenmrsType(ctx, mi.ItemCodeableConcept)
			if err != nil {
				return nil, err
			}
			di := &medication.DrugIngredient{Ingredient: ing}
			if mi.Strength != nil && mi.Strength.Numerator != nil {
				n := mi.Strength.Numerator
				if n.Value != nil {
					di.Strength = fhir.Decimal(*n.Value)
				}
				if n.Code != "" {
					if di.Units, err = t.concepts.ToOpenmrsType(ctx, &fhir.CodeableConcept{Coding: []fhir.Coding{{Code: n.Code}}}); err != nil {
						return nil, err
					}
				}
			}
			d.Ingredients = append(d.Ingredients, di)
		}
	}

	ext := fhir.FindExtension(r.Extension, fhir.ExtensionMedicine)
	ext.Fields(func(field string, v *fhir.Extension) {
		switch field {
		case "drugName":
			d.Name = v.ValueString
		case "strength":
			d.Strength = v.ValueString
		case "maximumDailyDose":
			d.MaximumDailyDose = v.ValueDecimal
		case "minimumDailyDose":
			d.MinimumDailyDose = v.ValueDecimal
		}
	})
	return d, nil
}
