package fhir

import (
	"strings"
)

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return resourceType + "/" + id
}

// NewReference builds a literal reference with its type set.
func NewReference(resourceType, id, display string) *Reference {
	return &Reference{
		Reference: FormatReference(resourceType, id),
		Type:      resourceType,
		Display:   display,
	}
}

// ParseReference splits a literal reference into its resource type and id.
// Relative ("Patient/123"), absolute ("http://host/fhir/Patient/123") and
// versioned ("Patient/123/_history/2") forms are accepted. A bare id yields
// an empty type.
func ParseReference(ref string) (resourceType, id string) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return "", ""
	}
	if i := strings.Index(ref, "/_history/"); i >= 0 {
		ref = ref[:i]
	}
	ref = strings.TrimSuffix(ref, "/")
	parts := strings.Split(ref, "/")
	if len(parts) == 1 {
		return "", parts[0]
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// ReferenceType returns the declared type of a reference: the explicit type
// element when present, otherwise the type segment of the literal reference.
func ReferenceType(ref *Reference) string {
	if ref == nil {
		return ""
	}
	if ref.Type != "" {
		return ref.Type
	}
	t, _ := ParseReference(ref.Reference)
	return t
}

// ReferenceID returns the logical id carried by a reference, if any.
func ReferenceID(ref *Reference) string {
	if ref == nil {
		return ""
	}
	_, id := ParseReference(ref.Reference)
	return id
}
