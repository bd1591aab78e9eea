package translators

import (
	"fmt"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// estimatedMonthPrecisionAge is the age below which an estimated birthdate
// keeps its month.
const estimatedMonthPrecisionAge = 5

// BirthDateTranslator renders birthdates as FHIR dates. Estimated birthdates
// are rendered with reduced precision and partial dates read back as estimated.
type BirthDateTranslator struct {
	now func() time.Time
}

func NewBirthDateTranslator(now func() time.Time) *BirthDateTranslator {
	return &BirthDateTranslator{now: now}
}

func (t *BirthDateTranslator) ToFHIRResource(p *identity.Person) string {
	if p == nil || p.Birthdate == nil {
		return ""
	}
	if !p.BirthdateEstimated {
		return fhir.FormatDate(*p.Birthdate)
	}
	if age(*p.Birthdate, t.now()) < estimatedMonthPrecisionAge {
		return fhir.FormatWithPrecision(*p.Birthdate, fhir.PrecisionMonth)
	}
	return fhir.FormatWithPrecision(*p.Birthdate, fhir.PrecisionYear)
}

// ToOpenmrsType sets the birthdate fields of p from a FHIR date.
func (t *BirthDateTranslator) ToOpenmrsType(p *identity.Person, birthDate string) error {
	if birthDate == "" {
		return nil
	}
	d, precision, err := fhir.ParseDateTime(birthDate)
	if err != nil {
		return fmt.Errorf("%w: birthDate: %v", ErrIllegalArgument, err)
	}
	p.Birthdate = &d
	p.BirthdateEstimated = precision < fhir.PrecisionDay
	return nil
}

func age(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.YearDay() < birth.YearDay() {
		years--
	}
	return years
}
