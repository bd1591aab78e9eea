package translators

import (
	"strconv"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// newMeta stamps lastUpdated from the change date, falling back to the
// creation date, and derives versionId from it in Unix milliseconds.
func newMeta(dateCreated time.Time, dateChanged *time.Time) *fhir.Meta {
	lastUpdated := dateCreated
	if dateChanged != nil && !dateChanged.IsZero() {
		lastUpdated = *dateChanged
	}
	if lastUpdated.IsZero() {
		return nil
	}
	t := lastUpdated.UTC()
	return &fhir.Meta{
		LastUpdated: &t,
		VersionID:   strconv.FormatInt(t.UnixMilli(), 10),
	}
}
