package encounter

import (
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
)

// Encounter maps to the encounter table.
type Encounter struct {
	ID                int64                `db:"encounter_id" json:"encounter_id"`
	UUID              string               `db:"uuid" json:"uuid"`
	EncounterType     *EncounterType       `json:"encounter_type,omitempty"`
	Patient           *identity.Patient    `json:"patient,omitempty"`
	Location          *admin.Location      `json:"location,omitempty"`
	Visit             *Visit               `json:"visit,omitempty"`
	EncounterDatetime time.Time            `db:"encounter_datetime" json:"encounter_datetime"`
	Providers         []*EncounterProvider `json:"providers,omitempty"`
	Voided            bool                 `db:"voided" json:"voided"`
	DateCreated       time.Time            `db:"date_created" json:"date_created"`
	DateChanged       *time.Time           `db:"date_changed" json:"date_changed,omitempty"`
}

// ActiveProviders returns the providers that have not been voided.
func (e *Encounter) ActiveProviders() []*EncounterProvider {
	var out []*EncounterProvider
	for _, p := range e.Providers {
		if !p.Voided {
			out = append(out, p)
		}
	}
	return out
}

// AddProvider records provider in role unless that pairing already exists.
func (e *Encounter) AddProvider(role *EncounterRole, provider *identity.Provider) {
	for _, p := range e.Providers {
		if p.Voided || p.Provider == nil || p.Provider.UUID != provider.UUID {
			continue
		}
		if (p.Role == nil && role == nil) || (p.Role != nil && role != nil && p.Role.UUID == role.UUID) {
			return
		}
	}
	e.Providers = append(e.Providers, &EncounterProvider{Provider: provider, Role: role})
}

type EncounterType struct {
	UUID        string `db:"uuid" json:"uuid"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
}

type EncounterRole struct {
	UUID string `db:"uuid" json:"uuid"`
	Name string `db:"name" json:"name"`
}

type EncounterProvider struct {
	UUID     string             `db:"uuid" json:"uuid,omitempty"`
	Provider *identity.Provider `json:"provider,omitempty"`
	Role     *EncounterRole     `json:"encounter_role,omitempty"`
	Voided   bool               `db:"voided" json:"voided"`
}

type VisitType struct {
	UUID string `db:"uuid" json:"uuid"`
	Name string `db:"name" json:"name"`
}

// Visit maps to the visit table.
type Visit struct {
	ID            int64             `db:"visit_id" json:"visit_id"`
	UUID          string            `db:"uuid" json:"uuid"`
	VisitType     *VisitType        `json:"visit_type,omitempty"`
	Patient       *identity.Patient `json:"patient,omitempty"`
	Location      *admin.Location   `json:"location,omitempty"`
	StartDatetime time.Time         `db:"date_started" json:"date_started"`
	StopDatetime  *time.Time        `db:"date_stopped" json:"date_stopped,omitempty"`
	Voided        bool              `db:"voided" json:"voided"`
}

// IsOpen reports whether the visit has not been stopped.
func (v *Visit) IsOpen() bool {
	return v != nil && v.StopDatetime == nil
}
