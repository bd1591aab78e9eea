package clinical

import (
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
)

type ObsStatus string

const (
	ObsPreliminary ObsStatus = "PRELIMINARY"
	ObsFinal       ObsStatus = "FINAL"
	ObsAmended     ObsStatus = "AMENDED"
)

type Interpretation string

const (
	InterpretationNormal                Interpretation = "NORMAL"
	InterpretationAbnormal              Interpretation = "ABNORMAL"
	InterpretationCriticallyAbnormal    Interpretation = "CRITICALLY_ABNORMAL"
	InterpretationLow                   Interpretation = "LOW"
	InterpretationHigh                  Interpretation = "HIGH"
	InterpretationCriticallyLow         Interpretation = "CRITICALLY_LOW"
	InterpretationCriticallyHigh        Interpretation = "CRITICALLY_HIGH"
	InterpretationOffScaleLow           Interpretation = "OFF_SCALE_LOW"
	InterpretationOffScaleHigh          Interpretation = "OFF_SCALE_HIGH"
	InterpretationSignificantChangeDown Interpretation = "SIGNIFICANT_CHANGE_DOWN"
	InterpretationSignificantChangeUp   Interpretation = "SIGNIFICANT_CHANGE_UP"
	InterpretationResistant             Interpretation = "RESISTANT"
	InterpretationSusceptible           Interpretation = "SUSCEPTIBLE"
	InterpretationIntermediate          Interpretation = "INTERMEDIATE"
	InterpretationPositive              Interpretation = "POSITIVE"
	InterpretationNegative              Interpretation = "NEGATIVE"
)

// Obs maps to the obs table. Group members are obs whose obs_group_id
// points at this one.
type Obs struct {
	ID             int64                `db:"obs_id" json:"obs_id"`
	UUID           string               `db:"uuid" json:"uuid"`
	Concept        *terminology.Concept `json:"concept,omitempty"`
	Patient        *identity.Patient    `json:"patient,omitempty"`
	Encounter      *encounter.Encounter `json:"encounter,omitempty"`
	Order          *medication.Order    `json:"order,omitempty"`
	Location       *admin.Location      `json:"location,omitempty"`
	ObsDatetime    time.Time            `db:"obs_datetime" json:"obs_datetime"`
	ValueNumeric   *float64             `db:"value_numeric" json:"value_numeric,omitempty"`
	ValueCoded     *terminology.Concept `json:"value_coded,omitempty"`
	ValueText      string               `db:"value_text" json:"value_text,omitempty"`
	ValueBoolean   *bool                `db:"value_boolean" json:"value_boolean,omitempty"`
	ValueDatetime  *time.Time           `db:"value_datetime" json:"value_datetime,omitempty"`
	Comment        string               `db:"comments" json:"comment,omitempty"`
	Interpretation Interpretation       `db:"interpretation" json:"interpretation,omitempty"`
	Status         ObsStatus            `db:"status" json:"status,omitempty"`
	GroupMembers   []*Obs               `json:"group_members,omitempty"`
	Voided         bool                 `db:"voided" json:"voided"`
	DateCreated    time.Time            `db:"date_created" json:"date_created"`
	DateChanged    *time.Time           `db:"date_changed" json:"date_changed,omitempty"`
}

// IsGroup reports whether the obs groups other observations.
func (o *Obs) IsGroup() bool {
	return len(o.GroupMembers) > 0
}

// AddGroupMember appends member unless an obs with the same uuid is present.
func (o *Obs) AddGroupMember(member *Obs) {
	for _, m := range o.GroupMembers {
		if m.UUID == member.UUID {
			return
		}
	}
	o.GroupMembers = append(o.GroupMembers, member)
}

type ConditionClinicalStatus string

const (
	ConditionActive    ConditionClinicalStatus = "ACTIVE"
	ConditionInactive  ConditionClinicalStatus = "INACTIVE"
	ConditionHistoryOf ConditionClinicalStatus = "HISTORY_OF"
)

type ConditionVerificationStatus string

const (
	ConditionConfirmed   ConditionVerificationStatus = "CONFIRMED"
	ConditionProvisional ConditionVerificationStatus = "PROVISIONAL"
)

// CodedOrFreeText holds either a coded value or free text.
type CodedOrFreeText struct {
	Coded    *terminology.Concept `json:"coded,omitempty"`
	NonCoded string               `json:"non_coded,omitempty"`
}

// Condition maps to the conditions table.
type Condition struct {
	ID                 int64                       `db:"condition_id" json:"condition_id"`
	UUID               string                      `db:"uuid" json:"uuid"`
	Condition          CodedOrFreeText             `json:"condition"`
	ClinicalStatus     ConditionClinicalStatus     `db:"clinical_status" json:"clinical_status,omitempty"`
	VerificationStatus ConditionVerificationStatus `db:"verification_status" json:"verification_status,omitempty"`
	Patient            *identity.Patient           `json:"patient,omitempty"`
	Encounter          *encounter.Encounter        `json:"encounter,omitempty"`
	OnsetDate          *time.Time                  `db:"onset_date" json:"onset_date,omitempty"`
	EndDate            *time.Time                  `db:"end_date" json:"end_date,omitempty"`
	AdditionalDetail   string                      `db:"additional_detail" json:"additional_detail,omitempty"`
	Recorder           *identity.Provider          `json:"recorder,omitempty"`
	Voided             bool                        `db:"voided" json:"voided"`
	DateCreated        time.Time                   `db:"date_created" json:"date_created"`
	DateChanged        *time.Time                  `db:"date_changed" json:"date_changed,omitempty"`
}

type AllergenType string

const (
	AllergenDrug        AllergenType = "DRUG"
	AllergenFood        AllergenType = "FOOD"
	AllergenEnvironment AllergenType = "ENVIRONMENT"
	AllergenOther       AllergenType = "OTHER"
)

type Allergen struct {
	Type     AllergenType         `db:"allergen_type" json:"allergen_type,omitempty"`
	Coded    *terminology.Concept `json:"coded,omitempty"`
	NonCoded string               `db:"non_coded_allergen" json:"non_coded,omitempty"`
}

type AllergyReaction struct {
	UUID     string               `db:"uuid" json:"uuid,omitempty"`
	Reaction *terminology.Concept `json:"reaction,omitempty"`
	NonCoded string               `db:"reaction_non_coded" json:"non_coded,omitempty"`
}

// Allergy maps to the allergy table and its reactions.
type Allergy struct {
	ID          int64                `db:"allergy_id" json:"allergy_id"`
	UUID        string               `db:"uuid" json:"uuid"`
	Patient     *identity.Patient    `json:"patient,omitempty"`
	Allergen    Allergen             `json:"allergen"`
	Severity    *terminology.Concept `json:"severity,omitempty"`
	Comment     string               `db:"comments" json:"comment,omitempty"`
	Reactions   []*AllergyReaction   `json:"reactions,omitempty"`
	Recorder    *identity.Provider   `json:"recorder,omitempty"`
	Voided      bool                 `db:"voided" json:"voided"`
	DateCreated time.Time            `db:"date_created" json:"date_created"`
	DateChanged *time.Time           `db:"date_changed" json:"date_changed,omitempty"`
}
