package terminology

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

// =========== Concept Repository ===========

type conceptRepoPG struct{ pool *pgxpool.Pool }

func NewConceptRepoPG(pool *pgxpool.Pool) ConceptRepository { return &conceptRepoPG{pool: pool} }

func (r *conceptRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const conceptCols = `c.concept_id, c.uuid, c.is_set, c.retired, c.date_created, c.date_changed,
	COALESCE(cc.concept_class_id, 0), COALESCE(cc.uuid, ''), COALESCE(cc.name, ''),
	COALESCE(cd.uuid, ''), COALESCE(cd.name, ''), COALESCE(cd.hl7_abbreviation, '')`

func (r *conceptRepoPG) GetByUUID(ctx context.Context, uuid string) (*Concept, error) {
	var c Concept
	var class ConceptClass
	var datatype ConceptDatatype
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+conceptCols+`
		FROM concept c
		LEFT JOIN concept_class cc ON cc.concept_class_id = c.class_id
		LEFT JOIN concept_datatype cd ON cd.concept_datatype_id = c.datatype_id
		WHERE c.uuid = $1`, uuid).
		Scan(&c.ID, &c.UUID, &c.IsSet, &c.Retired, &c.DateCreated, &c.DateChanged,
			&class.ID, &class.UUID, &class.Name,
			&datatype.UUID, &datatype.Name, &datatype.HL7Abbreviation)
	if err != nil {
		return nil, fmt.Errorf("concept get %s: %w", uuid, db.NotFound(err))
	}
	if class.UUID != "" {
		c.Class = &class
	}
	if datatype.UUID != "" {
		c.Datatype = &datatype
	}
	if err := r.loadNames(ctx, &c); err != nil {
		return nil, err
	}
	if err := r.loadMappings(ctx, &c); err != nil {
		return nil, err
	}
	if c.HasDatatype(DatatypeNumeric) {
		if err := r.loadNumeric(ctx, &c); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

func (r *conceptRepoPG) loadNames(ctx context.Context, c *Concept) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT uuid, name, locale, COALESCE(concept_name_type, ''), locale_preferred
		FROM concept_name
		WHERE concept_id = $1 AND NOT voided
		ORDER BY concept_name_id`, c.ID)
	if err != nil {
		return fmt.Errorf("concept names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n ConceptName
		if err := rows.Scan(&n.UUID, &n.Name, &n.Locale, &n.Type, &n.LocalePreferred); err != nil {
			return err
		}
		c.Names = append(c.Names, n)
	}
	return rows.Err()
}

func (r *conceptRepoPG) loadMappings(ctx context.Context, c *Concept) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT crm.uuid,
		       crt.uuid, crt.code, COALESCE(crt.name, ''),
		       crs.concept_source_id, crs.uuid, crs.name, COALESCE(crs.hl7_code, ''), crs.retired,
		       COALESCE(cmt.uuid, ''), COALESCE(cmt.name, '')
		FROM concept_reference_map crm
		JOIN concept_reference_term crt ON crt.concept_reference_term_id = crm.concept_reference_term_id
		JOIN concept_reference_source crs ON crs.concept_source_id = crt.concept_source_id
		LEFT JOIN concept_map_type cmt ON cmt.concept_map_type_id = crm.concept_map_type_id
		WHERE crm.concept_id = $1
		ORDER BY crm.concept_map_id`, c.ID)
	if err != nil {
		return fmt.Errorf("concept mappings: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m ConceptMap
		var term ConceptReferenceTerm
		var source ConceptSource
		var mapType ConceptMapType
		if err := rows.Scan(&m.UUID,
			&term.UUID, &term.Code, &term.Name,
			&source.ID, &source.UUID, &source.Name, &source.HL7Code, &source.Retired,
			&mapType.UUID, &mapType.Name); err != nil {
			return err
		}
		term.Source = &source
		m.Term = &term
		if mapType.UUID != "" {
			m.MapType = &mapType
		}
		c.Mappings = append(c.Mappings, m)
	}
	return rows.Err()
}

func (r *conceptRepoPG) loadNumeric(ctx context.Context, c *Concept) error {
	var n ConceptNumeric
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT hi_absolute, hi_critical, hi_normal, low_absolute, low_critical, low_normal,
		       COALESCE(units, ''), COALESCE(allow_decimal, TRUE)
		FROM concept_numeric WHERE concept_id = $1`, c.ID).
		Scan(&n.HiAbsolute, &n.HiCritical, &n.HiNormal, &n.LowAbsolute, &n.LowCritical, &n.LowNormal,
			&n.Units, &n.AllowDecimal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("concept numeric: %w", err)
	}
	c.Numeric = &n
	return nil
}

func (r *conceptRepoPG) ListBySameAsMapping(ctx context.Context, sourceUUID, code string) ([]*Concept, error) {
	return r.listByMapping(ctx, sourceUUID, code, true)
}

func (r *conceptRepoPG) ListByAnyMapping(ctx context.Context, sourceUUID, code string) ([]*Concept, error) {
	return r.listByMapping(ctx, sourceUUID, code, false)
}

func (r *conceptRepoPG) listByMapping(ctx context.Context, sourceUUID, code string, sameAsOnly bool) ([]*Concept, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT c.concept_id, c.uuid
		FROM concept c
		JOIN concept_reference_map crm ON crm.concept_id = c.concept_id
		JOIN concept_reference_term crt ON crt.concept_reference_term_id = crm.concept_reference_term_id
		JOIN concept_reference_source crs ON crs.concept_source_id = crt.concept_source_id
		LEFT JOIN concept_map_type cmt ON cmt.concept_map_type_id = crm.concept_map_type_id
		WHERE crs.uuid = $1 AND crt.code = $2 AND NOT c.retired
		  AND (NOT $3::boolean OR UPPER(cmt.name) = 'SAME-AS')
		ORDER BY c.concept_id`, sourceUUID, code, sameAsOnly)
	if err != nil {
		return nil, fmt.Errorf("concept mapping search: %w", err)
	}
	var uuids []string
	for rows.Next() {
		var id int64
		var uuid string
		if err := rows.Scan(&id, &uuid); err != nil {
			rows.Close()
			return nil, err
		}
		uuids = append(uuids, uuid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	concepts := make([]*Concept, 0, len(uuids))
	for _, uuid := range uuids {
		c, err := r.GetByUUID(ctx, uuid)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, nil
}

// =========== Concept Source Repository ===========

type conceptSourceRepoPG struct{ pool *pgxpool.Pool }

func NewConceptSourceRepoPG(pool *pgxpool.Pool) ConceptSourceRepository {
	return &conceptSourceRepoPG{pool: pool}
}

func (r *conceptSourceRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

const fhirSourceSelect = `
	SELECT fcs.fhir_concept_source_id, fcs.uuid, fcs.name, fcs.url, fcs.retired,
	       crs.concept_source_id, crs.uuid, crs.name, COALESCE(crs.hl7_code, ''), crs.retired
	FROM fhir_concept_source fcs
	JOIN concept_reference_source crs ON crs.concept_source_id = fcs.concept_source_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFHIRSource(row rowScanner) (*FHIRConceptSource, error) {
	var f FHIRConceptSource
	var s ConceptSource
	if err := row.Scan(&f.ID, &f.UUID, &f.Name, &f.URL, &f.Retired,
		&s.ID, &s.UUID, &s.Name, &s.HL7Code, &s.Retired); err != nil {
		return nil, err
	}
	f.ConceptSource = &s
	return &f, nil
}

func (r *conceptSourceRepoPG) GetFHIRConceptSourceByURL(ctx context.Context, url string) (*FHIRConceptSource, error) {
	f, err := scanFHIRSource(r.conn(ctx).QueryRow(ctx,
		fhirSourceSelect+` WHERE fcs.url = $1 AND NOT fcs.retired`, url))
	if err != nil {
		return nil, fmt.Errorf("fhir concept source by url: %w", db.NotFound(err))
	}
	return f, nil
}

func (r *conceptSourceRepoPG) GetFHIRConceptSourceBySourceUUID(ctx context.Context, sourceUUID string) (*FHIRConceptSource, error) {
	f, err := scanFHIRSource(r.conn(ctx).QueryRow(ctx,
		fhirSourceSelect+` WHERE crs.uuid = $1 AND NOT fcs.retired`, sourceUUID))
	if err != nil {
		return nil, fmt.Errorf("fhir concept source by source: %w", db.NotFound(err))
	}
	return f, nil
}

func (r *conceptSourceRepoPG) ListFHIRConceptSources(ctx context.Context) ([]*FHIRConceptSource, error) {
	rows, err := r.conn(ctx).Query(ctx, fhirSourceSelect+` WHERE NOT fcs.retired ORDER BY fcs.name`)
	if err != nil {
		return nil, fmt.Errorf("fhir concept sources: %w", err)
	}
	defer rows.Close()
	var sources []*FHIRConceptSource
	for rows.Next() {
		f, err := scanFHIRSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, f)
	}
	return sources, rows.Err()
}

// =========== Mapping Repository ===========

type mappingRepoPG struct{ pool *pgxpool.Pool }

func NewMappingRepoPG(pool *pgxpool.Pool) MappingRepository { return &mappingRepoPG{pool: pool} }

func (r *mappingRepoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.pool) }

func (r *mappingRepoPG) lookup(ctx context.Context, what, query string, arg string) (string, error) {
	var v string
	if err := r.conn(ctx).QueryRow(ctx, query, arg).Scan(&v); err != nil {
		return "", fmt.Errorf("%s %s: %w", what, arg, db.NotFound(err))
	}
	return v, nil
}

func (r *mappingRepoPG) GetEncounterClass(ctx context.Context, locationUUID string) (string, error) {
	return r.lookup(ctx, "encounter class", `
		SELECT m.encounter_class FROM fhir_encounter_class_map m
		JOIN location l ON l.location_id = m.location_id
		WHERE l.uuid = $1`, locationUUID)
}

func (r *mappingRepoPG) GetObservationCategory(ctx context.Context, conceptClassUUID string) (string, error) {
	return r.lookup(ctx, "observation category", `
		SELECT m.observation_category FROM fhir_observation_category_map m
		JOIN concept_class cc ON cc.concept_class_id = m.concept_class_id
		WHERE cc.uuid = $1`, conceptClassUUID)
}

func (r *mappingRepoPG) GetDurationUnit(ctx context.Context, conceptUUID string) (string, error) {
	return r.lookup(ctx, "duration unit", `
		SELECT m.unit_of_time FROM fhir_duration_unit_map m
		JOIN concept c ON c.concept_id = m.concept_id
		WHERE c.uuid = $1`, conceptUUID)
}

func (r *mappingRepoPG) GetDurationUnitConceptUUID(ctx context.Context, unitOfTime string) (string, error) {
	return r.lookup(ctx, "duration unit concept", `
		SELECT c.uuid FROM fhir_duration_unit_map m
		JOIN concept c ON c.concept_id = m.concept_id
		WHERE m.unit_of_time = $1
		ORDER BY m.fhir_duration_unit_map_id LIMIT 1`, unitOfTime)
}

func (r *mappingRepoPG) GetIdentifierSystem(ctx context.Context, identifierTypeUUID string) (string, error) {
	return r.lookup(ctx, "identifier system", `
		SELECT s.url FROM fhir_patient_identifier_system s
		JOIN patient_identifier_type t ON t.patient_identifier_type_id = s.patient_identifier_type_id
		WHERE t.uuid = $1`, identifierTypeUUID)
}

func (r *mappingRepoPG) GetIdentifierTypeUUIDBySystem(ctx context.Context, url string) (string, error) {
	return r.lookup(ctx, "identifier type", `
		SELECT t.uuid FROM fhir_patient_identifier_system s
		JOIN patient_identifier_type t ON t.patient_identifier_type_id = s.patient_identifier_type_id
		WHERE s.url = $1 AND NOT t.retired
		ORDER BY s.fhir_patient_identifier_system_id LIMIT 1`, url)
}
