package terminology

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/cache"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

// ConceptService resolves concepts by UUID and by reference term mappings.
// Lookups that match nothing return a nil concept and a nil error.
type ConceptService struct {
	repo   ConceptRepository
	logger zerolog.Logger
}

func NewConceptService(repo ConceptRepository, logger zerolog.Logger) *ConceptService {
	return &ConceptService{repo: repo, logger: logger}
}

func (s *ConceptService) GetConceptByUUID(ctx context.Context, uuid string) (*Concept, error) {
	if uuid == "" {
		return nil, nil
	}
	c, err := s.repo.GetByUUID(ctx, uuid)
	if errors.Is(err, db.ErrNotFound) {
		s.logger.Debug().Str("uuid", uuid).Msg("concept not found")
		return nil, nil
	}
	return c, err
}

// GetConceptWithSameAsMappingInSource returns the concept mapped SAME-AS to
// code in source. When several concepts qualify the first is returned.
func (s *ConceptService) GetConceptWithSameAsMappingInSource(ctx context.Context, source *ConceptSource, code string) (*Concept, error) {
	if source == nil || code == "" {
		return nil, nil
	}
	concepts, err := s.repo.ListBySameAsMapping(ctx, source.UUID, code)
	if err != nil {
		return nil, err
	}
	if len(concepts) == 0 {
		return nil, nil
	}
	if len(concepts) > 1 {
		s.logger.Warn().Str("source", source.Name).Str("code", code).Int("matches", len(concepts)).
			Msg("multiple concepts share a SAME-AS mapping")
	}
	return concepts[0], nil
}

func (s *ConceptService) GetConceptsWithAnyMappingInSource(ctx context.Context, source *ConceptSource, code string) ([]*Concept, error) {
	if source == nil || code == "" {
		return nil, nil
	}
	return s.repo.ListByAnyMapping(ctx, source.UUID, code)
}

// ConceptSourceService resolves concept sources and their code system URLs.
// Results, including misses, are cached for ttl.
type ConceptSourceService struct {
	repo   ConceptSourceRepository
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
}

func NewConceptSourceService(repo ConceptSourceRepository, c cache.Cache, ttl time.Duration, logger zerolog.Logger) *ConceptSourceService {
	return &ConceptSourceService{repo: repo, cache: c, ttl: ttl, logger: logger}
}

const (
	sourceURLKeyPrefix = "fhir2:concept-source-url:"
	sourceByURLPrefix  = "fhir2:concept-source:"
)

// GetURLForConceptSource returns the system URL configured for source, or ""
// when the source has none.
func (s *ConceptSourceService) GetURLForConceptSource(ctx context.Context, source *ConceptSource) (string, error) {
	if source == nil || source.UUID == "" {
		return "", nil
	}
	key := sourceURLKeyPrefix + source.UUID
	if url, ok := s.cached(ctx, key); ok {
		return url, nil
	}

	var url string
	f, err := s.repo.GetFHIRConceptSourceBySourceUUID(ctx, source.UUID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.logger.Debug().Str("source", source.Name).Msg("no system url for concept source")
	case err != nil:
		return "", err
	default:
		url = f.URL
	}
	s.store(ctx, key, url)
	return url, nil
}

// GetConceptSourceByURL returns the concept source bound to the system URL,
// or nil when none is.
func (s *ConceptSourceService) GetConceptSourceByURL(ctx context.Context, url string) (*ConceptSource, error) {
	if url == "" {
		return nil, nil
	}
	key := sourceByURLPrefix + url
	if raw, ok := s.cached(ctx, key); ok {
		if raw == "" {
			return nil, nil
		}
		var source ConceptSource
		if err := json.Unmarshal([]byte(raw), &source); err == nil {
			return &source, nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	f, err := s.repo.GetFHIRConceptSourceByURL(ctx, url)
	if errors.Is(err, db.ErrNotFound) || (err == nil && f.ConceptSource == nil) {
		s.logger.Debug().Str("url", url).Msg("no concept source for system url")
		s.store(ctx, key, "")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(f.ConceptSource)
	if err != nil {
		return nil, fmt.Errorf("encode concept source: %w", err)
	}
	s.store(ctx, key, string(encoded))
	return f.ConceptSource, nil
}

func (s *ConceptSourceService) cached(ctx context.Context, key string) (string, bool) {
	if s.cache == nil {
		return "", false
	}
	v, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return "", false
	}
	return v, ok
}

func (s *ConceptSourceService) store(ctx context.Context, key, value string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}
