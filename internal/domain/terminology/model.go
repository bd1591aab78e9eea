package terminology

import (
	"strings"
	"time"
)

// ConceptNameType distinguishes the kinds of names a concept carries.
type ConceptNameType string

const (
	NameFullySpecified ConceptNameType = "FULLY_SPECIFIED"
	NameShort          ConceptNameType = "SHORT"
	NameIndexTerm      ConceptNameType = "INDEX_TERM"
)

// HL7 abbreviations of the concept datatypes the translators care about.
const (
	DatatypeNumeric  = "NM"
	DatatypeCoded    = "CWE"
	DatatypeText     = "ST"
	DatatypeBoolean  = "BIT"
	DatatypeDate     = "DT"
	DatatypeTime     = "TM"
	DatatypeDateTime = "TS"
	DatatypeNA       = "ZZ"
)

// MapTypeSameAs is the name of the map type marking an exact equivalence.
const MapTypeSameAs = "SAME-AS"

// Concept maps to the concept table and its names, mappings and numeric row.
type Concept struct {
	ID          int64            `db:"concept_id" json:"concept_id"`
	UUID        string           `db:"uuid" json:"uuid"`
	Class       *ConceptClass    `json:"class,omitempty"`
	Datatype    *ConceptDatatype `json:"datatype,omitempty"`
	Names       []ConceptName    `json:"names,omitempty"`
	Mappings    []ConceptMap     `json:"mappings,omitempty"`
	Numeric     *ConceptNumeric  `json:"numeric,omitempty"`
	IsSet       bool             `db:"is_set" json:"is_set"`
	Retired     bool             `db:"retired" json:"retired"`
	DateCreated time.Time        `db:"date_created" json:"date_created"`
	DateChanged *time.Time       `db:"date_changed" json:"date_changed,omitempty"`
}

// PreferredName picks the locale preferred name, then the fully specified
// name in locale, then any preferred name, then the first name.
func (c *Concept) PreferredName(locale string) string {
	if c == nil || len(c.Names) == 0 {
		return ""
	}
	var fullySpecified, anyPreferred string
	for _, n := range c.Names {
		inLocale := locale == "" || sameLanguage(n.Locale, locale)
		if inLocale && n.LocalePreferred {
			return n.Name
		}
		if inLocale && n.Type == NameFullySpecified && fullySpecified == "" {
			fullySpecified = n.Name
		}
		if n.LocalePreferred && anyPreferred == "" {
			anyPreferred = n.Name
		}
	}
	if fullySpecified != "" {
		return fullySpecified
	}
	if anyPreferred != "" {
		return anyPreferred
	}
	return c.Names[0].Name
}

func sameLanguage(a, b string) bool {
	lang := func(l string) string {
		l = strings.ToLower(l)
		if i := strings.IndexAny(l, "_-"); i > 0 {
			return l[:i]
		}
		return l
	}
	return a == b || lang(a) == lang(b)
}

// HasDatatype reports whether the concept's datatype has the given HL7 abbreviation.
func (c *Concept) HasDatatype(abbreviation string) bool {
	return c != nil && c.Datatype != nil && c.Datatype.HL7Abbreviation == abbreviation
}

type ConceptName struct {
	UUID            string          `db:"uuid" json:"uuid"`
	Name            string          `db:"name" json:"name"`
	Locale          string          `db:"locale" json:"locale"`
	Type            ConceptNameType `db:"concept_name_type" json:"type,omitempty"`
	LocalePreferred bool            `db:"locale_preferred" json:"locale_preferred"`
}

type ConceptClass struct {
	ID   int64  `db:"concept_class_id" json:"concept_class_id"`
	UUID string `db:"uuid" json:"uuid"`
	Name string `db:"name" json:"name"`
}

type ConceptDatatype struct {
	UUID            string `db:"uuid" json:"uuid"`
	Name            string `db:"name" json:"name"`
	HL7Abbreviation string `db:"hl7_abbreviation" json:"hl7_abbreviation"`
}

// ConceptNumeric holds the ranges and units of a numeric concept.
type ConceptNumeric struct {
	HiAbsolute   *float64 `db:"hi_absolute" json:"hi_absolute,omitempty"`
	HiCritical   *float64 `db:"hi_critical" json:"hi_critical,omitempty"`
	HiNormal     *float64 `db:"hi_normal" json:"hi_normal,omitempty"`
	LowAbsolute  *float64 `db:"low_absolute" json:"low_absolute,omitempty"`
	LowCritical  *float64 `db:"low_critical" json:"low_critical,omitempty"`
	LowNormal    *float64 `db:"low_normal" json:"low_normal,omitempty"`
	Units        string   `db:"units" json:"units,omitempty"`
	AllowDecimal bool     `db:"allow_decimal" json:"allow_decimal"`
}

type ConceptMap struct {
	UUID    string                `db:"uuid" json:"uuid"`
	Term    *ConceptReferenceTerm `json:"term,omitempty"`
	MapType *ConceptMapType       `json:"map_type,omitempty"`
}

// IsSameAs reports whether the mapping is an exact equivalence.
func (m *ConceptMap) IsSameAs() bool {
	return m != nil && m.MapType != nil && strings.EqualFold(m.MapType.Name, MapTypeSameAs)
}

type ConceptMapType struct {
	UUID string `db:"uuid" json:"uuid"`
	Name string `db:"name" json:"name"`
}

type ConceptReferenceTerm struct {
	UUID   string         `db:"uuid" json:"uuid"`
	Code   string         `db:"code" json:"code"`
	Name   string         `db:"name" json:"name,omitempty"`
	Source *ConceptSource `json:"source,omitempty"`
}

// ConceptSource maps to concept_reference_source.
type ConceptSource struct {
	ID      int64  `db:"concept_source_id" json:"concept_source_id"`
	UUID    string `db:"uuid" json:"uuid"`
	Name    string `db:"name" json:"name"`
	HL7Code string `db:"hl7_code" json:"hl7_code,omitempty"`
	Retired bool   `db:"retired" json:"retired"`
}

// FHIRConceptSource binds a concept source to the code system URL FHIR uses for it.
type FHIRConceptSource struct {
	ID            int64          `db:"fhir_concept_source_id" json:"fhir_concept_source_id"`
	UUID          string         `db:"uuid" json:"uuid"`
	Name          string         `db:"name" json:"name"`
	URL           string         `db:"url" json:"url"`
	ConceptSource *ConceptSource `json:"concept_source,omitempty"`
	Retired       bool           `db:"retired" json:"retired"`
}

// EncounterClassMap maps a location to an encounter class code.
type EncounterClassMap struct {
	LocationUUID   string `db:"location_uuid" json:"location_uuid"`
	EncounterClass string `db:"encounter_class" json:"encounter_class"`
}

// ObservationCategoryMap maps a concept class to an observation category code.
type ObservationCategoryMap struct {
	ConceptClassUUID    string `db:"concept_class_uuid" json:"concept_class_uuid"`
	ObservationCategory string `db:"observation_category" json:"observation_category"`
}

// DurationUnitMap maps a duration unit concept to a units-of-time code.
type DurationUnitMap struct {
	ConceptUUID string `db:"concept_uuid" json:"concept_uuid"`
	UnitOfTime  string `db:"unit_of_time" json:"unit_of_time"`
}

// PatientIdentifierSystem maps an identifier type to its system URL.
type PatientIdentifierSystem struct {
	IdentifierTypeUUID string `db:"identifier_type_uuid" json:"identifier_type_uuid"`
	URL                string `db:"url" json:"url"`
}
