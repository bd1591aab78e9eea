// Package codesystem loads FHIR CodeSystem resources and answers display
// lookups for (system, code) pairs.
package codesystem

import (
	"fmt"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gofhir/fhir/r4"
	"github.com/rs/zerolog"
)

// Registry holds code displays per code system URL.
type Registry struct {
	mu       sync.RWMutex
	displays map[string]map[string]string
	logger   zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		displays: make(map[string]map[string]string),
		logger:   logger,
	}
}

// LoadCodeSystem indexes every concept of cs, including nested ones.
func (r *Registry) LoadCodeSystem(cs *r4.CodeSystem) error {
	if cs == nil || cs.Url == nil || *cs.Url == "" {
		return fmt.Errorf("codesystem is nil or has no url")
	}
	codes := make(map[string]string)
	collectDisplays(cs.Concept, codes)

	r.mu.Lock()
	r.displays[*cs.Url] = codes
	r.mu.Unlock()

	r.logger.Debug().Str("system", *cs.Url).Int("codes", len(codes)).Msg("code system loaded")
	return nil
}

func collectDisplays(concepts []r4.CodeSystemConcept, into map[string]string) {
	for i := range concepts {
		c := &concepts[i]
		if c.Code == nil {
			continue
		}
		display := ""
		if c.Display != nil {
			display = *c.Display
		}
		into[*c.Code] = display
		if len(c.Concept) > 0 {
			collectDisplays(c.Concept, into)
		}
	}
}

// LoadJSON loads a CodeSystem or a Bundle of CodeSystems and returns how many
// code systems were indexed.
func (r *Registry) LoadJSON(data []byte) (int, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
		Entry        []struct {
			Resource json.RawMessage `json:"resource"`
		} `json:"entry"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("parse resource: %w", err)
	}

	switch probe.ResourceType {
	case "CodeSystem":
		var cs r4.CodeSystem
		if err := json.Unmarshal(data, &cs); err != nil {
			return 0, fmt.Errorf("parse CodeSystem: %w", err)
		}
		if err := r.LoadCodeSystem(&cs); err != nil {
			return 0, err
		}
		return 1, nil
	case "Bundle":
		loaded := 0
		for _, e := range probe.Entry {
			var entry struct {
				ResourceType string `json:"resourceType"`
			}
			if json.Unmarshal(e.Resource, &entry) != nil || entry.ResourceType != "CodeSystem" {
				continue
			}
			var cs r4.CodeSystem
			if err := json.Unmarshal(e.Resource, &cs); err != nil {
				return loaded, fmt.Errorf("parse bundled CodeSystem: %w", err)
			}
			if err := r.LoadCodeSystem(&cs); err != nil {
				r.logger.Warn().Err(err).Msg("skipping bundled code system")
				continue
			}
			loaded++
		}
		return loaded, nil
	default:
		return 0, fmt.Errorf("unsupported resourceType: %q", probe.ResourceType)
	}
}

// LoadFile reads a CodeSystem or Bundle from disk.
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	n, err := r.LoadJSON(data)
	if err != nil {
		return n, fmt.Errorf("load %s: %w", path, err)
	}
	return n, nil
}

// Display returns the display of code in system, or "" when unknown.
func (r *Registry) Display(system, code string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.displays[system][code]
}

// Systems returns the number of loaded code systems.
func (r *Registry) Systems() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.displays)
}
