package translators

import (
	"testing"
	"time"
)

func TestNewMeta(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	changed := time.Date(2024, 2, 1, 12, 0, 0, 0, time.FixedZone("EAT", 3*3600))

	if m := newMeta(time.Time{}, nil); m != nil {
		t.Errorf("expected no meta without dates, got %+v", m)
	}
	m := newMeta(created, nil)
	if m.VersionID != "1704067200000" || !m.LastUpdated.Equal(created) {
		t.Errorf("unexpected meta from creation date %+v", m)
	}
	m = newMeta(created, &changed)
	if !m.LastUpdated.Equal(changed) || m.LastUpdated.Location() != time.UTC {
		t.Errorf("expected lastUpdated from change date in UTC, got %v", m.LastUpdated)
	}
}
