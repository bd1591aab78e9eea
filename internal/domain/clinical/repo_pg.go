package clinical

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/medication"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

type conceptResolver struct {
	concepts terminology.ConceptRepository
}

func (c conceptResolver) get(ctx context.Context, uuid string) (*terminology.Concept, error) {
	if uuid == "" {
		return nil, nil
	}
	concept, err := c.concepts.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, fmt.Errorf("resolve concept %s: %w", uuid, err)
	}
	return concept, nil
}

func patientStub(uuid string) *identity.Patient {
	p := &identity.Patient{}
	p.UUID = uuid
	return p
}

// recorderJoin resolves the creating user to the provider record of its person.
const recorderJoin = `
	LEFT JOIN users u ON u.user_id = %[1]s.creator
	LEFT JOIN LATERAL (
		SELECT pr.uuid, pr.name FROM provider pr
		WHERE pr.person_id = u.person_id AND NOT pr.retired
		ORDER BY pr.provider_id LIMIT 1
	) rec ON TRUE`

// =========== Obs Repository ===========

type obsRepoPG struct {
	pool *pgxpool.Pool
	conceptResolver
}

func NewObsRepoPG(pool *pgxpool.Pool, concepts terminology.ConceptRepository) ObsRepository {
	return &obsRepoPG{pool: pool, conceptResolver: conceptResolver{concepts: concepts}}
}

func (r *obsRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const obsSelect = `
	SELECT o.obs_id, o.uuid, o.obs_datetime, o.value_numeric, COALESCE(o.value_text, ''),
	       o.value_datetime, COALESCE(o.comments, ''), COALESCE(o.interpretation, ''),
	       COALESCE(o.status, ''), o.voided, o.date_created,
	       c.uuid, COALESCE(vc.uuid, ''), pe.uuid, COALESCE(e.uuid, ''),
	       COALESCE(ord.uuid, ''), COALESCE(l.uuid, ''), COALESCE(l.name, '')
	FROM obs o
	JOIN concept c ON c.concept_id = o.concept_id
	JOIN person pe ON pe.person_id = o.person_id
	LEFT JOIN concept vc ON vc.concept_id = o.value_coded
	LEFT JOIN encounter e ON e.encounter_id = o.encounter_id
	LEFT JOIN orders ord ON ord.order_id = o.order_id
	LEFT JOIN location l ON l.location_id = o.location_id`

func (r *obsRepoPG) GetByUUID(ctx context.Context, uuid string) (*Obs, error) {
	o, err := r.scan(ctx, r.conn(ctx).QueryRow(ctx, obsSelect+` WHERE o.uuid = $1`, uuid))
	if err != nil {
		return nil, fmt.Errorf("obs get %s: %w", uuid, err)
	}
	members, err := r.memberUUIDs(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		member, err := r.GetByUUID(ctx, m)
		if err != nil {
			return nil, err
		}
		o.GroupMembers = append(o.GroupMembers, member)
	}
	return o, nil
}

func (r *obsRepoPG) scan(ctx context.Context, row interface{ Scan(...interface{}) error }) (*Obs, error) {
	var o Obs
	var conceptUUID, valueCoded, patientUUID, encUUID, orderUUID, locUUID, locName string
	err := row.Scan(&o.ID, &o.UUID, &o.ObsDatetime, &o.ValueNumeric, &o.ValueText,
		&o.ValueDatetime, &o.Comment, &o.Interpretation,
		&o.Status, &o.Voided, &o.DateCreated,
		&conceptUUID, &valueCoded, &patientUUID, &encUUID,
		&orderUUID, &locUUID, &locName)
	if err != nil {
		return nil, db.NotFound(err)
	}
	if o.Concept, err = r.get(ctx, conceptUUID); err != nil {
		return nil, err
	}
	if o.ValueCoded, err = r.get(ctx, valueCoded); err != nil {
		return nil, err
	}
	// booleans are stored as 1/0 in value_numeric
	if o.Concept.HasDatatype(terminology.DatatypeBoolean) && o.ValueNumeric != nil {
		b := *o.ValueNumeric != 0
		o.ValueBoolean = &b
		o.ValueNumeric = nil
	}
	o.Patient = patientStub(patientUUID)
	if encUUID != "" {
		o.Encounter = &encounter.Encounter{UUID: encUUID}
	}
	if orderUUID != "" {
		o.Order = &medication.Order{UUID: orderUUID}
	}
	if locUUID != "" {
		o.Location = &admin.Location{UUID: locUUID, Name: locName}
	}
	return &o, nil
}

func (r *obsRepoPG) memberUUIDs(ctx context.Context, groupID int64) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT uuid FROM obs WHERE obs_group_id = $1 AND NOT voided ORDER BY obs_id`, groupID)
	if err != nil {
		return nil, fmt.Errorf("obs group members: %w", err)
	}
	defer rows.Close()
	var uuids []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		uuids = append(uuids, u)
	}
	return uuids, rows.Err()
}

// =========== Condition Repository ===========

type conditionRepoPG struct {
	pool *pgxpool.Pool
	conceptResolver
}

func NewConditionRepoPG(pool *pgxpool.Pool, concepts terminology.ConceptRepository) ConditionRepository {
	return &conditionRepoPG{pool: pool, conceptResolver: conceptResolver{concepts: concepts}}
}

func (r *conditionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *conditionRepoPG) GetByUUID(ctx context.Context, uuid string) (*Condition, error) {
	var c Condition
	var codedUUID, patientUUID, encUUID, recUUID, recName string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT cn.condition_id, cn.uuid, COALESCE(cn.condition_non_coded, ''),
		       COALESCE(cn.clinical_status, ''), COALESCE(cn.verification_status, ''),
		       cn.onset_date, cn.end_date, COALESCE(cn.additional_detail, ''),
		       cn.voided, cn.date_created, cn.date_changed,
		       COALESCE(cc.uuid, ''), pe.uuid, COALESCE(e.uuid, ''),
		       COALESCE(rec.uuid, ''), COALESCE(rec.name, '')
		FROM conditions cn
		JOIN person pe ON pe.person_id = cn.patient_id
		LEFT JOIN concept cc ON cc.concept_id = cn.condition_coded
		LEFT JOIN encounter e ON e.encounter_id = cn.encounter_id`+fmt.Sprintf(recorderJoin, "cn")+`
		WHERE cn.uuid = $1`, uuid).
		Scan(&c.ID, &c.UUID, &c.Condition.NonCoded,
			&c.ClinicalStatus, &c.VerificationStatus,
			&c.OnsetDate, &c.EndDate, &c.AdditionalDetail,
			&c.Voided, &c.DateCreated, &c.DateChanged,
			&codedUUID, &patientUUID, &encUUID,
			&recUUID, &recName)
	if err != nil {
		return nil, fmt.Errorf("condition get %s: %w", uuid, db.NotFound(err))
	}
	if c.Condition.Coded, err = r.get(ctx, codedUUID); err != nil {
		return nil, err
	}
	c.Patient = patientStub(patientUUID)
	if encUUID != "" {
		c.Encounter = &encounter.Encounter{UUID: encUUID}
	}
	if recUUID != "" {
		c.Recorder = &identity.Provider{UUID: recUUID, Name: recName}
	}
	return &c, nil
}

// =========== Allergy Repository ===========

type allergyRepoPG struct {
	pool *pgxpool.Pool
	conceptResolver
}

func NewAllergyRepoPG(pool *pgxpool.Pool, concepts terminology.ConceptRepository) AllergyRepository {
	return &allergyRepoPG{pool: pool, conceptResolver: conceptResolver{concepts: concepts}}
}

func (r *allergyRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *allergyRepoPG) GetByUUID(ctx context.Context, uuid string) (*Allergy, error) {
	var a Allergy
	var allergenUUID, severityUUID, patientUUID, recUUID, recName string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT al.allergy_id, al.uuid, COALESCE(al.allergen_type, ''), COALESCE(al.non_coded_allergen, ''),
		       COALESCE(al.comments, ''), al.voided, al.date_created, al.date_changed,
		       COALESCE(ca.uuid, ''), COALESCE(sv.uuid, ''), pe.uuid,
		       COALESCE(rec.uuid, ''), COALESCE(rec.name, '')
		FROM allergy al
		JOIN person pe ON pe.person_id = al.patient_id
		LEFT JOIN concept ca ON ca.concept_id = al.coded_allergen
		LEFT JOIN concept sv ON sv.concept_id = al.severity_concept_id`+fmt.Sprintf(recorderJoin, "al")+`
		WHERE al.uuid = $1`, uuid).
		Scan(&a.ID, &a.UUID, &a.Allergen.Type, &a.Allergen.NonCoded,
			&a.Comment, &a.Voided, &a.DateCreated, &a.DateChanged,
			&allergenUUID, &severityUUID, &patientUUID,
			&recUUID, &recName)
	if err != nil {
		return nil, fmt.Errorf("allergy get %s: %w", uuid, db.NotFound(err))
	}
	if a.Allergen.Coded, err = r.get(ctx, allergenUUID); err != nil {
		return nil, err
	}
	if a.Severity, err = r.get(ctx, severityUUID); err != nil {
		return nil, err
	}
	a.Patient = patientStub(patientUUID)
	if recUUID != "" {
		a.Recorder = &identity.Provider{UUID: recUUID, Name: recName}
	}
	if err := r.loadReactions(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *allergyRepoPG) loadReactions(ctx context.Context, a *Allergy) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ar.uuid, COALESCE(ar.reaction_non_coded, ''), COALESCE(c.uuid, '')
		FROM allergy_reaction ar
		LEFT JOIN concept c ON c.concept_id = ar.reaction_concept_id
		WHERE ar.allergy_id = $1
		ORDER BY ar.allergy_reaction_id`, a.ID)
	if err != nil {
		return fmt.Errorf("allergy reactions: %w", err)
	}
	var reactions []*AllergyReaction
	var conceptUUIDs []string
	for rows.Next() {
		var ar AllergyReaction
		var conceptUUID string
		if err := rows.Scan(&ar.UUID, &ar.NonCoded, &conceptUUID); err != nil {
			rows.Close()
			return err
		}
		reactions = append(reactions, &ar)
		conceptUUIDs = append(conceptUUIDs, conceptUUID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for i, ar := range reactions {
		if ar.Reaction, err = r.get(ctx, conceptUUIDs[i]); err != nil {
			return err
		}
	}
	a.Reactions = reactions
	return nil
}
