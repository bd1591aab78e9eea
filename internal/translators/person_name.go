package translators

import (
	"strings"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// PersonNameTranslator maps person names to HumanName. Name parts FHIR has no
// element for travel in the name extension.
type PersonNameTranslator struct{}

func NewPersonNameTranslator() *PersonNameTranslator {
	return &PersonNameTranslator{}
}

func (t *PersonNameTranslator) ToFHIRResource(n *identity.PersonName) *fhir.HumanName {
	if n == nil {
		return nil
	}
	name := &fhir.HumanName{
		ID:     n.UUID,
		Family: n.FamilyName,
		Text:   n.FullName(),
	}
	for _, given := range []string{n.GivenName, n.MiddleName} {
		if given != "" {
			name.Given = append(name.Given, given)
		}
	}
	if n.Prefix != "" {
		name.Prefix = []string{n.Prefix}
	}

	ext := fhir.Extension{URL: fhir.ExtensionName}
	ext.AddStringField("familyNamePrefix", n.FamilyNamePrefix)
	ext.AddStringField("familyName2", n.FamilyName2)
	ext.AddStringField("familyNameSuffix", n.FamilyNameSuffix)
	ext.AddStringField("degree", n.Degree)
	if len(ext.Extension) > 0 {
		name.Extension = []fhir.Extension{ext}
	}
	return name
}

func (t *PersonNameTranslator) ToOpenmrsType(h *fhir.HumanName) *identity.PersonName {
	if h == nil {
		return nil
	}
	n := &identity.PersonName{
		UUID:       h.ID,
		FamilyName: h.Family,
		Prefix:     strings.Join(h.Prefix, " "),
	}
	if len(h.Given) > 0 {
		n.GivenName = h.Given[0]
		n.MiddleName = strings.Join(h.Given[1:], " ")
	}
	fhir.FindExtension(h.Extension, fhir.ExtensionName).Fields(func(field string, v *fhir.Extension) {
		switch field {
		case "familyNamePrefix":
			n.FamilyNamePrefix = v.ValueString
		case "familyName2":
			n.FamilyName2 = v.ValueString
		case "familyNameSuffix":
			n.FamilyNameSuffix = v.ValueString
		case "degree":
			n.Degree = v.ValueString
		}
	})
	return n
}
