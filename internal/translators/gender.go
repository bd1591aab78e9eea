package translators

import "github.com/rs/zerolog"

var genderToFHIR = map[string]string{
	"M": "male",
	"F": "female",
	"O": "other",
	"U": "unknown",
}

var genderToOpenmrs = map[string]string{
	"male":    "M",
	"female":  "F",
	"other":   "O",
	"unknown": "U",
}

// GenderTranslator maps native gender codes to administrative-gender.
type GenderTranslator struct {
	logger zerolog.Logger
}

func NewGenderTranslator(logger zerolog.Logger) *GenderTranslator {
	return &GenderTranslator{logger: logger}
}

// ToFHIRResource maps an empty gender to no value and anything unmapped to unknown.
func (t *GenderTranslator) ToFHIRResource(gender string) string {
	if gender == "" {
		return ""
	}
	if g, ok := genderToFHIR[gender]; ok {
		return g
	}
	t.logger.Warn().Str("gender", gender).Msg("unmapped gender")
	return "unknown"
}

func (t *GenderTranslator) ToOpenmrsType(gender string) string {
	if gender == "" {
		return ""
	}
	if g, ok := genderToOpenmrs[gender]; ok {
		return g
	}
	t.logger.Warn().Str("gender", gender).Msg("unmapped administrative gender")
	return ""
}
