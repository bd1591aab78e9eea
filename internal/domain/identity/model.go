package identity

import (
	"strings"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
)

// Person maps to the person table with its names, addresses and attributes.
type Person struct {
	ID                 int64              `db:"person_id" json:"person_id"`
	UUID               string             `db:"uuid" json:"uuid"`
	Gender             string             `db:"gender" json:"gender,omitempty"`
	Birthdate          *time.Time         `db:"birthdate" json:"birthdate,omitempty"`
	BirthdateEstimated bool               `db:"birthdate_estimated" json:"birthdate_estimated"`
	Dead               bool               `db:"dead" json:"dead"`
	DeathDate          *time.Time         `db:"death_date" json:"death_date,omitempty"`
	Names              []*PersonName      `json:"names,omitempty"`
	Addresses          []*PersonAddress   `json:"addresses,omitempty"`
	Attributes         []*PersonAttribute `json:"attributes,omitempty"`
	Voided             bool               `db:"voided" json:"voided"`
	DateCreated        time.Time          `db:"date_created" json:"date_created"`
	DateChanged        *time.Time         `db:"date_changed" json:"date_changed,omitempty"`
}

// PreferredName returns the preferred active name, else the first active name.
func (p *Person) PreferredName() *PersonName {
	if p == nil {
		return nil
	}
	var first *PersonName
	for _, n := range p.Names {
		if n.Voided {
			continue
		}
		if n.Preferred {
			return n
		}
		if first == nil {
			first = n
		}
	}
	return first
}

// AddName replaces the name with the same uuid. A name without a uuid is
// dropped when an active name with the same parts already exists.
func (p *Person) AddName(n *PersonName) {
	for _, existing := range p.Names {
		if existing.UUID != "" && existing.UUID == n.UUID {
			*existing = *n
			return
		}
	}
	if n.UUID == "" {
		for _, existing := range p.Names {
			if !existing.Voided && existing.SameContent(n) {
				return
			}
		}
	}
	p.Names = append(p.Names, n)
}

// AddAddress is AddName for addresses. A content match only carries over
// the preferred flag.
func (p *Person) AddAddress(a *PersonAddress) {
	for _, existing := range p.Addresses {
		if existing.UUID != "" && existing.UUID == a.UUID {
			*existing = *a
			return
		}
	}
	if a.UUID == "" {
		for _, existing := range p.Addresses {
			if !existing.Voided && existing.SameContent(a) {
				existing.Preferred = a.Preferred
				return
			}
		}
	}
	p.Addresses = append(p.Addresses, a)
}

// AttributesOfType returns the active attributes of the given type.
func (p *Person) AttributesOfType(typeUUID string) []*PersonAttribute {
	var out []*PersonAttribute
	for _, a := range p.Attributes {
		if !a.Voided && a.Type != nil && a.Type.UUID == typeUUID {
			out = append(out, a)
		}
	}
	return out
}

type PersonName struct {
	UUID             string     `db:"uuid" json:"uuid"`
	Preferred        bool       `db:"preferred" json:"preferred"`
	Prefix           string     `db:"prefix" json:"prefix,omitempty"`
	GivenName        string     `db:"given_name" json:"given_name,omitempty"`
	MiddleName       string     `db:"middle_name" json:"middle_name,omitempty"`
	FamilyNamePrefix string     `db:"family_name_prefix" json:"family_name_prefix,omitempty"`
	FamilyName       string     `db:"family_name" json:"family_name,omitempty"`
	FamilyName2      string     `db:"family_name2" json:"family_name2,omitempty"`
	FamilyNameSuffix string     `db:"family_name_suffix" json:"family_name_suffix,omitempty"`
	Degree           string     `db:"degree" json:"degree,omitempty"`
	Voided           bool       `db:"voided" json:"voided"`
	DateCreated      time.Time  `db:"date_created" json:"date_created"`
	DateChanged      *time.Time `db:"date_changed" json:"date_changed,omitempty"`
}

// FullName joins the populated name parts with single spaces.
func (n *PersonName) FullName() string {
	parts := []string{n.Prefix, n.GivenName, n.MiddleName, n.FamilyNamePrefix,
		n.FamilyName, n.FamilyName2, n.FamilyNameSuffix, n.Degree}
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

// SameContent reports whether both names carry the same name parts.
func (n *PersonName) SameContent(o *PersonName) bool {
	return n.Prefix == o.Prefix && n.GivenName == o.GivenName && n.MiddleName == o.MiddleName &&
		n.FamilyNamePrefix == o.FamilyNamePrefix && n.FamilyName == o.FamilyName &&
		n.FamilyName2 == o.FamilyName2 && n.FamilyNameSuffix == o.FamilyNameSuffix && n.Degree == o.Degree
}

type PersonAddress struct {
	UUID           string     `db:"uuid" json:"uuid"`
	Preferred      bool       `db:"preferred" json:"preferred"`
	Address1       string     `db:"address1" json:"address1,omitempty"`
	Address2       string     `db:"address2" json:"address2,omitempty"`
	Address3       string     `db:"address3" json:"address3,omitempty"`
	Address4       string     `db:"address4" json:"address4,omitempty"`
	Address5       string     `db:"address5" json:"address5,omitempty"`
	Address6       string     `db:"address6" json:"address6,omitempty"`
	Address7       string     `db:"address7" json:"address7,omitempty"`
	Address8       string     `db:"address8" json:"address8,omitempty"`
	Address9       string     `db:"address9" json:"address9,omitempty"`
	Address10      string     `db:"address10" json:"address10,omitempty"`
	Address11      string     `db:"address11" json:"address11,omitempty"`
	Address12      string     `db:"address12" json:"address12,omitempty"`
	Address13      string     `db:"address13" json:"address13,omitempty"`
	Address14      string     `db:"address14" json:"address14,omitempty"`
	Address15      string     `db:"address15" json:"address15,omitempty"`
	CityVillage    string     `db:"city_village" json:"city_village,omitempty"`
	CountyDistrict string     `db:"county_district" json:"county_district,omitempty"`
	StateProvince  string     `db:"state_province" json:"state_province,omitempty"`
	PostalCode     string     `db:"postal_code" json:"postal_code,omitempty"`
	Country        string     `db:"country" json:"country,omitempty"`
	StartDate      *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate        *time.Time `db:"end_date" json:"end_date,omitempty"`
	Voided         bool       `db:"voided" json:"voided"`
	DateCreated    time.Time  `db:"date_created" json:"date_created"`
	DateChanged    *time.Time `db:"date_changed" json:"date_changed,omitempty"`
}

// Lines returns pointers to address1 through address15 in order.
func (a *PersonAddress) Lines() []*string {
	return []*string{
		&a.Address1, &a.Address2, &a.Address3, &a.Address4, &a.Address5,
		&a.Address6, &a.Address7, &a.Address8, &a.Address9, &a.Address10,
		&a.Address11, &a.Address12, &a.Address13, &a.Address14, &a.Address15,
	}
}

// SameContent compares the address lines, locality fields and dates.
func (a *PersonAddress) SameContent(o *PersonAddress) bool {
	al, ol := a.Lines(), o.Lines()
	for i := range al {
		if *al[i] != *ol[i] {
			return false
		}
	}
	return a.CityVillage == o.CityVillage && a.CountyDistrict == o.CountyDistrict &&
		a.StateProvince == o.StateProvince && a.PostalCode == o.PostalCode && a.Country == o.Country &&
		sameTime(a.StartDate, o.StartDate) && sameTime(a.EndDate, o.EndDate)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type PersonAttributeType struct {
	UUID   string `db:"uuid" json:"uuid"`
	Name   string `db:"name" json:"name"`
	Format string `db:"format" json:"format,omitempty"`
}

type PersonAttribute struct {
	UUID   string               `db:"uuid" json:"uuid"`
	Value  string               `db:"value" json:"value"`
	Type   *PersonAttributeType `json:"type,omitempty"`
	Voided bool                 `db:"voided" json:"voided"`
}

// Patient is a person with identifiers.
type Patient struct {
	Person
	Identifiers []*PatientIdentifier `json:"identifiers,omitempty"`
}

// PreferredIdentifier returns the preferred active identifier, else the first.
func (p *Patient) PreferredIdentifier() *PatientIdentifier {
	var first *PatientIdentifier
	for _, id := range p.Identifiers {
		if id.Voided {
			continue
		}
		if id.Preferred {
			return id
		}
		if first == nil {
			first = id
		}
	}
	return first
}

type PatientIdentifierType struct {
	UUID        string `db:"uuid" json:"uuid"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	Retired     bool   `db:"retired" json:"retired"`
}

type PatientIdentifier struct {
	UUID       string                 `db:"uuid" json:"uuid"`
	Identifier string                 `db:"identifier" json:"identifier"`
	Type       *PatientIdentifierType `json:"type,omitempty"`
	Location   *admin.Location        `json:"location,omitempty"`
	Preferred  bool                   `db:"preferred" json:"preferred"`
	Voided     bool                   `db:"voided" json:"voided"`
}

// SameContent reports whether both identifiers have the same value and type.
func (id *PatientIdentifier) SameContent(o *PatientIdentifier) bool {
	if id.Identifier != o.Identifier {
		return false
	}
	if id.Type == nil || o.Type == nil {
		return id.Type == o.Type
	}
	return id.Type.UUID == o.Type.UUID
}

// Provider maps to the provider table. Person is nil for providers recorded
// by name only.
type Provider struct {
	ID          int64      `db:"provider_id" json:"provider_id"`
	UUID        string     `db:"uuid" json:"uuid"`
	Identifier  string     `db:"identifier" json:"identifier,omitempty"`
	Name        string     `db:"name" json:"name,omitempty"`
	Person      *Person    `json:"person,omitempty"`
	Retired     bool       `db:"retired" json:"retired"`
	DateCreated time.Time  `db:"date_created" json:"date_created"`
	DateChanged *time.Time `db:"date_changed" json:"date_changed,omitempty"`
}

// DisplayName prefers the person's name over the provider's own name.
func (p *Provider) DisplayName() string {
	if p == nil {
		return ""
	}
	if n := p.Person.PreferredName(); n != nil {
		if full := n.FullName(); full != "" {
			return full
		}
	}
	return p.Name
}
