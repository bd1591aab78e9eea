package fhir

// Resource type names.
const (
	ResourcePatient            = "Patient"
	ResourcePractitioner       = "Practitioner"
	ResourceEncounter          = "Encounter"
	ResourceLocation           = "Location"
	ResourceObservation        = "Observation"
	ResourceMedication         = "Medication"
	ResourceMedicationRequest  = "MedicationRequest"
	ResourceServiceRequest     = "ServiceRequest"
	ResourceCondition          = "Condition"
	ResourceAllergyIntolerance = "AllergyIntolerance"
	ResourceOperationOutcome   = "OperationOutcome"
)

type Patient struct {
	ResourceType     string         `json:"resourceType"`
	ID               string         `json:"id,omitempty"`
	Meta             *Meta          `json:"meta,omitempty"`
	Text             *Narrative     `json:"text,omitempty"`
	Extension        []Extension    `json:"extension,omitempty"`
	Identifier       []Identifier   `json:"identifier,omitempty"`
	Active           *bool          `json:"active,omitempty"`
	Name             []HumanName    `json:"name,omitempty"`
	Telecom          []ContactPoint `json:"telecom,omitempty"`
	Gender           string         `json:"gender,omitempty"`
	BirthDate        string         `json:"birthDate,omitempty"`
	DeceasedBoolean  *bool          `json:"deceasedBoolean,omitempty"`
	DeceasedDateTime string         `json:"deceasedDateTime,omitempty"`
	Address          []Address      `json:"address,omitempty"`
}

type Practitioner struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Meta         *Meta          `json:"meta,omitempty"`
	Extension    []Extension    `json:"extension,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Active       *bool          `json:"active,omitempty"`
	Name         []HumanName    `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Address      []Address      `json:"address,omitempty"`
	Gender       string         `json:"gender,omitempty"`
	BirthDate    string         `json:"birthDate,omitempty"`
}

type Encounter struct {
	ResourceType string                 `json:"resourceType"`
	ID           string                 `json:"id,omitempty"`
	Meta         *Meta                  `json:"meta,omitempty"`
	Extension    []Extension            `json:"extension,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Class        *Coding                `json:"class,omitempty"`
	Type         []CodeableConcept      `json:"type,omitempty"`
	Subject      *Reference             `json:"subject,omitempty"`
	Participant  []EncounterParticipant `json:"participant,omitempty"`
	Period       *Period                `json:"period,omitempty"`
	Location     []EncounterLocation    `json:"location,omitempty"`
	PartOf       *Reference             `json:"partOf,omitempty"`
}

type EncounterParticipant struct {
	ID         string            `json:"id,omitempty"`
	Type       []CodeableConcept `json:"type,omitempty"`
	Period     *Period           `json:"period,omitempty"`
	Individual *Reference        `json:"individual,omitempty"`
}

type EncounterLocation struct {
	Location Reference `json:"location"`
	Status   string    `json:"status,omitempty"`
	Period   *Period   `json:"period,omitempty"`
}

type Observation struct {
	ResourceType         string                      `json:"resourceType"`
	ID                   string                      `json:"id,omitempty"`
	Meta                 *Meta                       `json:"meta,omitempty"`
	BasedOn              []Reference                 `json:"basedOn,omitempty"`
	Status               string                      `json:"status,omitempty"`
	Category             []CodeableConcept           `json:"category,omitempty"`
	Code                 *CodeableConcept            `json:"code,omitempty"`
	Subject              *Reference                  `json:"subject,omitempty"`
	Encounter            *Reference                  `json:"encounter,omitempty"`
	EffectiveDateTime    string                      `json:"effectiveDateTime,omitempty"`
	Issued               string                      `json:"issued,omitempty"`
	ValueQuantity        *Quantity                   `json:"valueQuantity,omitempty"`
	ValueCodeableConcept *CodeableConcept            `json:"valueCodeableConcept,omitempty"`
	ValueString          string                      `json:"valueString,omitempty"`
	ValueBoolean         *bool                       `json:"valueBoolean,omitempty"`
	ValueDateTime        string                      `json:"valueDateTime,omitempty"`
	Interpretation       []CodeableConcept           `json:"interpretation,omitempty"`
	Note                 []Annotation                `json:"note,omitempty"`
	ReferenceRange       []ObservationReferenceRange `json:"referenceRange,omitempty"`
	HasMember            []Reference                 `json:"hasMember,omitempty"`
}

// HasValue reports whether any value[x] element is populated.
func (o *Observation) HasValue() bool {
	return o.ValueQuantity != nil || o.ValueCodeableConcept != nil || o.ValueString != "" ||
		o.ValueBoolean != nil || o.ValueDateTime != ""
}

type ObservationReferenceRange struct {
	Low  *Quantity        `json:"low,omitempty"`
	High *Quantity        `json:"high,omitempty"`
	Type *CodeableConcept `json:"type,omitempty"`
	Text string           `json:"text,omitempty"`
}

type Medication struct {
	ResourceType string                 `json:"resourceType"`
	ID           string                 `json:"id,omitempty"`
	Meta         *Meta                  `json:"meta,omitempty"`
	Extension    []Extension            `json:"extension,omitempty"`
	Code         *CodeableConcept       `json:"code,omitempty"`
	Status       string                 `json:"status,omitempty"`
	Form         *CodeableConcept       `json:"form,omitempty"`
	Ingredient   []MedicationIngredient `json:"ingredient,omitempty"`
}

type MedicationIngredient struct {
	ItemCodeableConcept *CodeableConcept `json:"itemCodeableConcept,omitempty"`
	IsActive            *bool            `json:"isActive,omitempty"`
	Strength            *Ratio           `json:"strength,omitempty"`
}

type Ratio struct {
	Numerator   *Quantity `json:"numerator,omitempty"`
	Denominator *Quantity `json:"denominator,omitempty"`
}

type MedicationRequest struct {
	ResourceType              string                            `json:"resourceType"`
	ID                        string                            `json:"id,omitempty"`
	Meta                      *Meta                             `json:"meta,omitempty"`
	Identifier                []Identifier                      `json:"identifier,omitempty"`
	Status                    string                            `json:"status,omitempty"`
	Intent                    string                            `json:"intent,omitempty"`
	Priority                  string                            `json:"priority,omitempty"`
	MedicationReference       *Reference                        `json:"medicationReference,omitempty"`
	MedicationCodeableConcept *CodeableConcept                  `json:"medicationCodeableConcept,omitempty"`
	Subject                   *Reference                        `json:"subject,omitempty"`
	Encounter                 *Reference                        `json:"encounter,omitempty"`
	AuthoredOn                string                            `json:"authoredOn,omitempty"`
	Requester                 *Reference                        `json:"requester,omitempty"`
	Note                      []Annotation                      `json:"note,omitempty"`
	DosageInstruction         []Dosage                          `json:"dosageInstruction,omitempty"`
	DispenseRequest           *MedicationRequestDispenseRequest `json:"dispenseRequest,omitempty"`
	PriorPrescription         *Reference                        `json:"priorPrescription,omitempty"`
}

type MedicationRequestDispenseRequest struct {
	ValidityPeriod         *Period   `json:"validityPeriod,omitempty"`
	NumberOfRepeatsAllowed *int      `json:"numberOfRepeatsAllowed,omitempty"`
	Quantity               *Quantity `json:"quantity,omitempty"`
}

type Dosage struct {
	Sequence                *int                `json:"sequence,omitempty"`
	Text                    string              `json:"text,omitempty"`
	AdditionalInstruction   []CodeableConcept   `json:"additionalInstruction,omitempty"`
	PatientInstruction      string              `json:"patientInstruction,omitempty"`
	Timing                  *Timing             `json:"timing,omitempty"`
	AsNeededBoolean         *bool               `json:"asNeededBoolean,omitempty"`
	AsNeededCodeableConcept *CodeableConcept    `json:"asNeededCodeableConcept,omitempty"`
	Route                   *CodeableConcept    `json:"route,omitempty"`
	DoseAndRate             []DosageDoseAndRate `json:"doseAndRate,omitempty"`
}

type DosageDoseAndRate struct {
	Type         *CodeableConcept `json:"type,omitempty"`
	DoseQuantity *Quantity        `json:"doseQuantity,omitempty"`
}

type Timing struct {
	Event  []string         `json:"event,omitempty"`
	Repeat *TimingRepeat    `json:"repeat,omitempty"`
	Code   *CodeableConcept `json:"code,omitempty"`
}

type TimingRepeat struct {
	BoundsPeriod *Period  `json:"boundsPeriod,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
	DurationUnit string   `json:"durationUnit,omitempty"`
	Frequency    *int     `json:"frequency,omitempty"`
	Period       *float64 `json:"period,omitempty"`
	PeriodUnit   string   `json:"periodUnit,omitempty"`
}

type Condition struct {
	ResourceType       string           `json:"resourceType"`
	ID                 string           `json:"id,omitempty"`
	Meta               *Meta            `json:"meta,omitempty"`
	Extension          []Extension      `json:"extension,omitempty"`
	ClinicalStatus     *CodeableConcept `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept `json:"verificationStatus,omitempty"`
	Code               *CodeableConcept `json:"code,omitempty"`
	Subject            *Reference       `json:"subject,omitempty"`
	Encounter          *Reference       `json:"encounter,omitempty"`
	OnsetDateTime      string           `json:"onsetDateTime,omitempty"`
	AbatementDateTime  string           `json:"abatementDateTime,omitempty"`
	RecordedDate       string           `json:"recordedDate,omitempty"`
	Recorder           *Reference       `json:"recorder,omitempty"`
	Note               []Annotation     `json:"note,omitempty"`
}

type AllergyIntolerance struct {
	ResourceType       string                       `json:"resourceType"`
	ID                 string                       `json:"id,omitempty"`
	Meta               *Meta                        `json:"meta,omitempty"`
	Extension          []Extension                  `json:"extension,omitempty"`
	ClinicalStatus     *CodeableConcept             `json:"clinicalStatus,omitempty"`
	VerificationStatus *CodeableConcept             `json:"verificationStatus,omitempty"`
	Type               string                       `json:"type,omitempty"`
	Category           []string                     `json:"category,omitempty"`
	Criticality        string                       `json:"criticality,omitempty"`
	Code               *CodeableConcept             `json:"code,omitempty"`
	Patient            *Reference                   `json:"patient,omitempty"`
	RecordedDate       string                       `json:"recordedDate,omitempty"`
	Recorder           *Reference                   `json:"recorder,omitempty"`
	Note               []Annotation                 `json:"note,omitempty"`
	Reaction           []AllergyIntoleranceReaction `json:"reaction,omitempty"`
}

type AllergyIntoleranceReaction struct {
	Substance     *CodeableConcept  `json:"substance,omitempty"`
	Manifestation []CodeableConcept `json:"manifestation"`
	Severity      string            `json:"severity,omitempty"`
}
