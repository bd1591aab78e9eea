package translators

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/fhir"
)

// ConceptTranslator converts concepts to CodeableConcepts. The concept's own
// uuid is always emitted as a coding without a system; each mapping whose
// source has a configured URL adds a coding in that system, keeping only
// SAME-AS mappings for a system that has one.
type ConceptTranslator struct {
	concepts ConceptLookup
	sources  ConceptSourceLookup
	displays CodeDisplays
	locale   string
	logger   zerolog.Logger
}

func NewConceptTranslator(concepts ConceptLookup, sources ConceptSourceLookup, displays CodeDisplays, locale string, logger zerolog.Logger) *ConceptTranslator {
	return &ConceptTranslator{concepts: concepts, sources: sources, displays: displays, locale: locale, logger: logger}
}

func (t *ConceptTranslator) ToFHIRResource(ctx context.Context, c *terminology.Concept) (*fhir.CodeableConcept, error) {
	if c == nil {
		return nil, nil
	}
	name := c.PreferredName(t.locale)
	cc := &fhir.CodeableConcept{
		Text:   name,
		Coding: []fhir.Coding{{Code: c.UUID, Display: name}},
	}

	type mapped struct {
		coding fhir.Coding
		sameAs bool
	}
	var systems []string
	bySystem := make(map[string][]mapped)
	for i := range c.Mappings {
		m := &c.Mappings[i]
		if m.Term == nil || m.Term.Code == "" {
			continue
		}
		url, err := t.sources.GetURLForConceptSource(ctx, m.Term.Source)
		if err != nil {
			return nil, err
		}
		if url == "" {
			continue
		}
		if _, seen := bySystem[url]; !seen {
			systems = append(systems, url)
		}
		bySystem[url] = append(bySystem[url], mapped{
			coding: fhir.Coding{System: url, Code: m.Term.Code, Display: t.termDisplay(url, m.Term, name)},
			sameAs: m.IsSameAs(),
		})
	}

	for _, system := range systems {
		entries := bySystem[system]
		hasSameAs := false
		for _, e := range entries {
			if e.sameAs {
				hasSameAs = true
				break
			}
		}
		for _, e := range entries {
			if hasSameAs && !e.sameAs {
				continue
			}
			cc.Coding = append(cc.Coding, e.coding)
		}
	}
	return cc, nil
}

func (t *ConceptTranslator) termDisplay(system string, term *terminology.ConceptReferenceTerm, fallback string) string {
	if term.Name != "" {
		return term.Name
	}
	if t.displays != nil {
		if d := t.displays.Display(system, term.Code); d != "" {
			return d
		}
	}
	return fallback
}

// ToOpenmrsType resolves the first coding that identifies a concept: by uuid
// for codings without a system, otherwise by a SAME-AS mapping in the
// system's source, or by the only concept with any mapping to the code.
func (t *ConceptTranslator) ToOpenmrsType(ctx context.Context, cc *fhir.CodeableConcept) (*terminology.Concept, error) {
	if cc == nil {
		return nil, nil
	}
	for _, coding := range cc.Coding {
		if coding.Code == "" {
			continue
		}
		if coding.System == "" {
			c, err := t.concepts.GetConceptByUUID(ctx, coding.Code)
			if err != nil {
				return nil, err
			}
			if c != nil {
				return c, nil
			}
			continue
		}

		source, err := t.sources.GetConceptSourceByURL(ctx, coding.System)
		if err != nil {
			return nil, err
		}
		if source == nil {
			t.logger.Debug().Str("system", coding.System).Msg("no concept source for coding system")
			continue
		}
		c, err := t.concepts.GetConceptWithSameAsMappingInSource(ctx, source, coding.Code)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
		candidates, err := t.concepts.GetConceptsWithAnyMappingInSource(ctx, source, coding.Code)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		if len(candidates) > 1 {
			t.logger.Debug().Str("system", coding.System).Str("code", coding.Code).Int("matches", len(candidates)).
				Msg("ambiguous concept mapping")
		}
	}
	return nil, nil
}
