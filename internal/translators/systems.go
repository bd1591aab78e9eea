package translators

// Code system URLs emitted by the translators.
const (
	SystemEncounterType             = "http://fhir.openmrs.org/code-system/encounter-type"
	SystemActCode                   = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	SystemObservationCategory       = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemObservationInterpretation = "http://terminology.hl7.org/CodeSystem/v3-ObservationInterpretation"
	SystemReferenceRangeMeaning     = "http://terminology.hl7.org/CodeSystem/referencerange-meaning"
	SystemAbsoluteReferenceRange    = "http://fhir.openmrs.org/ext/obs/reference-range"
	SystemConditionClinical         = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemConditionVerification     = "http://terminology.hl7.org/CodeSystem/condition-ver-status"
	SystemAllergyClinical           = "http://terminology.hl7.org/CodeSystem/allergyintolerance-clinical"
	SystemAllergyVerification       = "http://terminology.hl7.org/CodeSystem/allergyintolerance-verification"
	SystemUCUM                      = "http://unitsofmeasure.org"
	SystemMedicationRequestCategory = "http://terminology.hl7.org/CodeSystem/medicationrequest-category"
)
