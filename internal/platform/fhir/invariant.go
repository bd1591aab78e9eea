package fhir

import (
	"fmt"
	"sync"

	"github.com/gofhir/fhirpath"
)

// Invariant is a FHIRPath rule an inbound resource must satisfy before it is
// translated into a native record.
type Invariant struct {
	Key        string
	Expression string
	Human      string
}

// DefaultInvariants are the rules enforced on inbound resources, keyed by
// resource type.
var DefaultInvariants = map[string][]Invariant{
	ResourcePatient: {
		{Key: "pat-ident", Expression: "name.exists() or identifier.exists()", Human: "A patient needs a name or an identifier"},
	},
	ResourceObservation: {
		{Key: "obs-code", Expression: "code.exists()", Human: "An observation must have a code"},
		{Key: "obs-value", Expression: "dataAbsentReason.empty() or (valueQuantity.empty() and valueString.empty() and valueCodeableConcept.empty())", Human: "dataAbsentReason SHALL only be present if value[x] is not present"},
	},
	ResourceMedicationRequest: {
		{Key: "mr-medication", Expression: "medicationReference.exists() or medicationCodeableConcept.exists()", Human: "A medication request must name a medication"},
	},
	ResourceCondition: {
		{Key: "con-subject", Expression: "subject.exists()", Human: "A condition must have a subject"},
	},
	ResourceAllergyIntolerance: {
		{Key: "ait-patient", Expression: "patient.exists()", Human: "An allergy must reference a patient"},
	},
}

// InvariantChecker evaluates invariants with compiled expressions cached
// between calls.
type InvariantChecker struct {
	mu       sync.RWMutex
	rules    map[string][]Invariant
	compiled map[string]*fhirpath.Expression
}

// NewInvariantChecker creates a checker seeded with DefaultInvariants.
func NewInvariantChecker() *InvariantChecker {
	c := &InvariantChecker{
		rules:    make(map[string][]Invariant),
		compiled: make(map[string]*fhirpath.Expression),
	}
	for rt, invs := range DefaultInvariants {
		c.Register(rt, invs...)
	}
	return c
}

// Register adds invariants for a resource type.
func (c *InvariantChecker) Register(resourceType string, invs ...Invariant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[resourceType] = append(c.rules[resourceType], invs...)
}

// Check evaluates every invariant registered for resourceType against the raw
// JSON resource. Failed invariants are returned as issues; an error is only
// returned when an expression cannot be compiled or evaluated.
func (c *InvariantChecker) Check(resourceType string, raw []byte) ([]OperationOutcomeIssue, error) {
	c.mu.RLock()
	invs := c.rules[resourceType]
	c.mu.RUnlock()

	var issues []OperationOutcomeIssue
	for _, inv := range invs {
		expr, err := c.expression(inv.Expression)
		if err != nil {
			return nil, fmt.Errorf("compile invariant %s: %w", inv.Key, err)
		}
		result, err := expr.Evaluate(raw)
		if err != nil {
			return nil, fmt.Errorf("evaluate invariant %s: %w", inv.Key, err)
		}
		if passed(result) {
			continue
		}
		issues = append(issues, OperationOutcomeIssue{
			Severity:    IssueSeverityError,
			Code:        IssueTypeInvariant,
			Diagnostics: fmt.Sprintf("%s: %s", inv.Key, inv.Human),
			Expression:  []string{resourceType},
		})
	}
	return issues, nil
}

func (c *InvariantChecker) expression(src string) (*fhirpath.Expression, error) {
	c.mu.RLock()
	expr, ok := c.compiled[src]
	c.mu.RUnlock()
	if ok {
		return expr, nil
	}
	expr, err := fhirpath.Compile(src)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.compiled[src] = expr
	c.mu.Unlock()
	return expr, nil
}

// An empty result means the rule does not apply.
func passed(result fhirpath.Collection) bool {
	if result.Empty() {
		return true
	}
	b, err := result.ToBoolean()
	if err != nil {
		return true
	}
	return b
}
