package terminology

import "testing"

func TestConcept_PreferredName(t *testing.T) {
	tests := []struct {
		name   string
		names  []ConceptName
		locale string
		want   string
	}{
		{
			name: "locale preferred wins",
			names: []ConceptName{
				{Name: "Hypertension, essential", Locale: "en", Type: NameFullySpecified},
				{Name: "HTN", Locale: "en", Type: NameShort, LocalePreferred: true},
			},
			locale: "en",
			want:   "HTN",
		},
		{
			name: "fully specified in locale",
			names: []ConceptName{
				{Name: "Hypertension", Locale: "en", Type: NameFullySpecified},
				{Name: "Hypertension artérielle", Locale: "fr", LocalePreferred: true},
			},
			locale: "en_GB",
			want:   "Hypertension",
		},
		{
			name: "falls back to any preferred",
			names: []ConceptName{
				{Name: "Hypertension artérielle", Locale: "fr", LocalePreferred: true},
			},
			locale: "en",
			want:   "Hypertension artérielle",
		},
		{
			name:   "first name",
			names:  []ConceptName{{Name: "Fever", Locale: "es"}},
			locale: "en",
			want:   "Fever",
		},
		{name: "no names", locale: "en", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Concept{Names: tt.names}
			if got := c.PreferredName(tt.locale); got != tt.want {
				t.Errorf("PreferredName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConcept_PreferredName_Nil(t *testing.T) {
	var c *Concept
	if got := c.PreferredName("en"); got != "" {
		t.Errorf("expected empty name for nil concept, got %q", got)
	}
}

func TestConceptMap_IsSameAs(t *testing.T) {
	if !(&ConceptMap{MapType: &ConceptMapType{Name: "SAME-AS"}}).IsSameAs() {
		t.Error("expected SAME-AS map to be same-as")
	}
	if !(&ConceptMap{MapType: &ConceptMapType{Name: "same-as"}}).IsSameAs() {
		t.Error("expected case-insensitive match")
	}
	if (&ConceptMap{MapType: &ConceptMapType{Name: "NARROWER-THAN"}}).IsSameAs() {
		t.Error("NARROWER-THAN is not same-as")
	}
	if (&ConceptMap{}).IsSameAs() {
		t.Error("map without type is not same-as")
	}
}

func TestConcept_HasDatatype(t *testing.T) {
	c := &Concept{Datatype: &ConceptDatatype{HL7Abbreviation: DatatypeNumeric}}
	if !c.HasDatatype(DatatypeNumeric) {
		t.Error("expected numeric datatype")
	}
	if c.HasDatatype(DatatypeCoded) {
		t.Error("did not expect coded datatype")
	}
	if (&Concept{}).HasDatatype(DatatypeNumeric) {
		t.Error("concept without datatype has none")
	}
}
