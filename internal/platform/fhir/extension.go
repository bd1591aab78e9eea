package fhir

import "strings"

// Extension URLs used to carry native fields that have no FHIR element.
const (
	ExtensionBase              = "http://fhir.openmrs.org/ext"
	ExtensionAddress           = ExtensionBase + "/address"
	ExtensionName              = ExtensionBase + "/name"
	ExtensionMedicine          = ExtensionBase + "/medicine"
	ExtensionNonCodedCondition = ExtensionBase + "/non-coded-condition"
	ExtensionNonCodedAllergen  = ExtensionBase + "/allergy-intolerance/non-coded-allergen"
)

// FieldURL returns the sub-extension URL for a native field under a parent
// extension, e.g. "http://fhir.openmrs.org/ext/address#address1".
func FieldURL(parent, field string) string {
	return parent + "#" + field
}

// FieldName returns the native field name encoded in a sub-extension URL
// under parent, or "" when the URL does not belong to parent.
func FieldName(parent, url string) string {
	prefix := parent + "#"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return url[len(prefix):]
}

// FindExtension returns the first extension with the given URL.
func FindExtension(exts []Extension, url string) *Extension {
	for i := range exts {
		if exts[i].URL == url {
			return &exts[i]
		}
	}
	return nil
}

// RemoveExtension returns exts without any extension carrying url.
func RemoveExtension(exts []Extension, url string) []Extension {
	out := exts[:0:0]
	for _, e := range exts {
		if e.URL != url {
			out = append(out, e)
		}
	}
	return out
}

// SetExtension replaces any extension with the same URL by ext.
func SetExtension(exts []Extension, ext Extension) []Extension {
	return append(RemoveExtension(exts, ext.URL), ext)
}

// AddStringField appends a "#field" string sub-extension when value is set.
func (e *Extension) AddStringField(field, value string) {
	if value == "" {
		return
	}
	e.Extension = append(e.Extension, Extension{URL: FieldURL(e.URL, field), ValueString: value})
}

// AddDecimalField appends a "#field" decimal sub-extension when value is set.
func (e *Extension) AddDecimalField(field string, value *float64) {
	if value == nil {
		return
	}
	v := *value
	e.Extension = append(e.Extension, Extension{URL: FieldURL(e.URL, field), ValueDecimal: &v})
}

// AddDateTimeField appends a "#field" dateTime sub-extension when value is set.
func (e *Extension) AddDateTimeField(field, value string) {
	if value == "" {
		return
	}
	e.Extension = append(e.Extension, Extension{URL: FieldURL(e.URL, field), ValueDateTime: value})
}

// Field returns the sub-extension for a native field, if present.
func (e *Extension) Field(field string) *Extension {
	if e == nil {
		return nil
	}
	return FindExtension(e.Extension, FieldURL(e.URL, field))
}

// Fields calls fn for every "#field" sub-extension of e.
func (e *Extension) Fields(fn func(field string, value *Extension)) {
	if e == nil {
		return
	}
	for i := range e.Extension {
		if name := FieldName(e.URL, e.Extension[i].URL); name != "" {
			fn(name, &e.Extension[i])
		}
	}
}
