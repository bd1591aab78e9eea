package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

func TestValidDirection(t *testing.T) {
	for _, d := range []string{"fhir", "openmrs"} {
		if err := validDirection(d); err != nil {
			t.Errorf("validDirection(%q): unexpected error %v", d, err)
		}
	}
	for _, d := range []string{"", "FHIR", "hl7"} {
		if err := validDirection(d); err == nil {
			t.Errorf("validDirection(%q): expected error", d)
		}
	}
}

func TestReadInput(t *testing.T) {
	stdin := strings.NewReader(`{"resourceType":"Patient"}`)
	got, err := readInput("-", stdin)
	if err != nil {
		t.Fatalf("stdin: %v", err)
	}
	if string(got) != `{"resourceType":"Patient"}` {
		t.Errorf("stdin: unexpected %q", got)
	}

	path := filepath.Join(t.TempDir(), "obs.json")
	if err := os.WriteFile(path, []byte(`{"uuid":"o-1"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err = readInput(path, nil)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if string(got) != `{"uuid":"o-1"}` {
		t.Errorf("file: unexpected %q", got)
	}

	if _, err := readInput(filepath.Join(t.TempDir(), "missing.json"), nil); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestPrintStatus(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	var buf bytes.Buffer
	printStatus(&buf, []db.MigrationStatus{
		{Version: 1, Name: "fhir2_lookup_tables", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "duration_units"},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "applied") || !strings.Contains(lines[1], "2024-03-01 09:30:00") {
		t.Errorf("unexpected applied row %q", lines[1])
	}
	if !strings.Contains(lines[2], "pending") {
		t.Errorf("unexpected pending row %q", lines[2])
	}
}

func TestTranslateCmd_RejectsDirection(t *testing.T) {
	cmd := translateCmd()
	cmd.SetArgs([]string{"--type", "Patient", "--to", "hl7"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "--to must be") {
		t.Errorf("expected direction error, got %v", err)
	}
}
