package translators

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// PersonAddressTranslator maps person addresses to Address. The address1 to
// address15 lines and the start and end dates travel in the address extension.
type PersonAddressTranslator struct{}

func NewPersonAddressTranslator() *PersonAddressTranslator {
	return &PersonAddressTranslator{}
}

func (t *PersonAddressTranslator) ToFHIRResource(a *identity.PersonAddress) *fhir.Address {
	if a == nil {
		return nil
	}
	addr := &fhir.Address{
		ID:         a.UUID,
		City:       a.CityVillage,
		District:   a.CountyDistrict,
		State:      a.StateProvince,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
	if a.Preferred {
		addr.Use = "home"
	}

	ext := fhir.Extension{URL: fhir.ExtensionAddress}
	for i, line := range a.Lines() {
		ext.AddStringField("address"+strconv.Itoa(i+1), *line)
	}
	ext.AddDateTimeField("startDate", fhir.FormatTimePtr(a.StartDate))
	ext.AddDateTimeField("endDate", fhir.FormatTimePtr(a.EndDate))
	if len(ext.Extension) > 0 {
		addr.Extension = []fhir.Extension{ext}
	}
	return addr
}

func (t *PersonAddressTranslator) ToOpenmrsType(addr *fhir.Address) (*identity.PersonAddress, error) {
	if addr == nil {
		return nil, nil
	}
	a := &identity.PersonAddress{
		UUID:           addr.ID,
		Preferred:      addr.Use == "home",
		CityVillage:    addr.City,
		CountyDistrict: addr.District,
		StateProvince:  addr.State,
		PostalCode:     addr.PostalCode,
		Country:        addr.Country,
	}

	var err error
	lines := a.Lines()
	fhir.FindExtension(addr.Extension, fhir.ExtensionAddress).Fields(func(field string, v *fhir.Extension) {
		if err != nil {
			return
		}
		switch {
		case strings.HasPrefix(field, "address"):
			n, convErr := strconv.Atoi(strings.TrimPrefix(field, "address"))
			if convErr == nil && n >= 1 && n <= len(lines) {
				*lines[n-1] = v.ValueString
			}
		case field == "startDate":
			a.StartDate, err = fhir.ParseTimePtr(v.ValueDateTime)
		case field == "endDate":
			a.EndDate, err = fhir.ParseTimePtr(v.ValueDateTime)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: address: %v", ErrIllegalArgument, err)
	}
	return a, nil
}
