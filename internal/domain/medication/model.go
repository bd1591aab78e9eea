package medication

import (
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
)

// Drug maps to the drug table.
type Drug struct {
	ID               int64                `db:"drug_id" json:"drug_id"`
	UUID             string               `db:"uuid" json:"uuid"`
	Name             string               `db:"name" json:"name,omitempty"`
	Concept          *terminology.Concept `json:"concept,omitempty"`
	DosageForm       *terminology.Concept `json:"dosage_form,omitempty"`
	Strength         string               `db:"strength" json:"strength,omitempty"`
	MaximumDailyDose *float64             `db:"maximum_daily_dose" json:"maximum_daily_dose,omitempty"`
	MinimumDailyDose *float64             `db:"minimum_daily_dose" json:"minimum_daily_dose,omitempty"`
	Ingredients      []*DrugIngredient    `json:"ingredients,omitempty"`
	Retired          bool                 `db:"retired" json:"retired"`
	DateCreated      time.Time            `db:"date_created" json:"date_created"`
	DateChanged      *time.Time           `db:"date_changed" json:"date_changed,omitempty"`
}

type DrugIngredient struct {
	Ingredient *terminology.Concept `json:"ingredient,omitempty"`
	Strength   *float64             `db:"strength" json:"strength,omitempty"`
	Units      *terminology.Concept `json:"units,omitempty"`
}

type OrderAction string

const (
	ActionNew         OrderAction = "NEW"
	ActionRevise      OrderAction = "REVISE"
	ActionDiscontinue OrderAction = "DISCONTINUE"
	ActionRenew       OrderAction = "RENEW"
)

type Urgency string

const (
	UrgencyRoutine         Urgency = "ROUTINE"
	UrgencyStat            Urgency = "STAT"
	UrgencyOnScheduledDate Urgency = "ON_SCHEDULED_DATE"
)

type CareSetting struct {
	UUID string `db:"uuid" json:"uuid"`
	Name string `db:"name" json:"name"`
	Type string `db:"care_setting_type" json:"care_setting_type,omitempty"`
}

type OrderFrequency struct {
	UUID            string               `db:"uuid" json:"uuid"`
	Concept         *terminology.Concept `json:"concept,omitempty"`
	FrequencyPerDay *float64             `db:"frequency_per_day" json:"frequency_per_day,omitempty"`
}

// Order maps to the orders table.
type Order struct {
	ID                 int64                `db:"order_id" json:"order_id"`
	UUID               string               `db:"uuid" json:"uuid"`
	OrderNumber        string               `db:"order_number" json:"order_number,omitempty"`
	Action             OrderAction          `db:"order_action" json:"action,omitempty"`
	Urgency            Urgency              `db:"urgency" json:"urgency,omitempty"`
	Concept            *terminology.Concept `json:"concept,omitempty"`
	Patient            *identity.Patient    `json:"patient,omitempty"`
	Encounter          *encounter.Encounter `json:"encounter,omitempty"`
	Orderer            *identity.Provider   `json:"orderer,omitempty"`
	CareSetting        *CareSetting         `json:"care_setting,omitempty"`
	PreviousOrder      *Order               `json:"previous_order,omitempty"`
	DateActivated      time.Time            `db:"date_activated" json:"date_activated"`
	ScheduledDate      *time.Time           `db:"scheduled_date" json:"scheduled_date,omitempty"`
	DateStopped        *time.Time           `db:"date_stopped" json:"date_stopped,omitempty"`
	AutoExpireDate     *time.Time           `db:"auto_expire_date" json:"auto_expire_date,omitempty"`
	CommentToFulfiller string               `db:"comment_to_fulfiller" json:"comment_to_fulfiller,omitempty"`
	Instructions       string               `db:"instructions" json:"instructions,omitempty"`
	Voided             bool                 `db:"voided" json:"voided"`
	DateCreated        time.Time            `db:"date_created" json:"date_created"`
	DateChanged        *time.Time           `db:"date_changed" json:"date_changed,omitempty"`
}

// IsDiscontinued reports whether the order was stopped at or before at.
func (o *Order) IsDiscontinued(at time.Time) bool {
	return o.DateStopped != nil && !at.Before(*o.DateStopped)
}

// IsExpired reports whether the order ran past its auto expire date without
// being stopped first.
func (o *Order) IsExpired(at time.Time) bool {
	if o.AutoExpireDate == nil || o.IsDiscontinued(at) {
		return false
	}
	return at.After(*o.AutoExpireDate)
}

// IsActive reports whether the order is in effect at the given time.
func (o *Order) IsActive(at time.Time) bool {
	if o.Voided || o.Action == ActionDiscontinue {
		return false
	}
	if o.IsDiscontinued(at) || o.IsExpired(at) {
		return false
	}
	start := o.DateActivated
	if o.Urgency == UrgencyOnScheduledDate && o.ScheduledDate != nil {
		start = *o.ScheduledDate
	}
	return !start.After(at)
}

// DrugOrder is an order for a drug, with its dosing.
type DrugOrder struct {
	Order
	Drug               *Drug                `json:"drug,omitempty"`
	DrugNonCoded       string               `db:"drug_non_coded" json:"drug_non_coded,omitempty"`
	Dose               *float64             `db:"dose" json:"dose,omitempty"`
	DoseUnits          *terminology.Concept `json:"dose_units,omitempty"`
	Frequency          *OrderFrequency      `json:"frequency,omitempty"`
	Route              *terminology.Concept `json:"route,omitempty"`
	AsNeeded           bool                 `db:"as_needed" json:"as_needed"`
	AsNeededCondition  string               `db:"as_needed_condition" json:"as_needed_condition,omitempty"`
	Duration           *int                 `db:"duration" json:"duration,omitempty"`
	DurationUnits      *terminology.Concept `json:"duration_units,omitempty"`
	Quantity           *float64             `db:"quantity" json:"quantity,omitempty"`
	QuantityUnits      *terminology.Concept `json:"quantity_units,omitempty"`
	NumRefills         *int                 `db:"num_refills" json:"num_refills,omitempty"`
	DosingInstructions string               `db:"dosing_instructions" json:"dosing_instructions,omitempty"`
}
