package encounter

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

// patientStub builds a patient carrying only its uuid and preferred name.
func patientStub(uuid, given, family string) *identity.Patient {
	p := &identity.Patient{}
	p.UUID = uuid
	if given != "" || family != "" {
		p.Names = []*identity.PersonName{{GivenName: given, FamilyName: family, Preferred: true}}
	}
	return p
}

const patientNameJoin = `
	JOIN person pe ON pe.person_id = %s
	LEFT JOIN LATERAL (
		SELECT given_name, family_name FROM person_name pn
		WHERE pn.person_id = pe.person_id AND NOT pn.voided
		ORDER BY pn.preferred DESC, pn.person_name_id LIMIT 1
	) nm ON TRUE`

func (r *repoPG) GetByUUID(ctx context.Context, uuid string) (*Encounter, error) {
	var e Encounter
	var typeUUID, typeName, locUUID, locName, visitUUID string
	var patUUID, given, family string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT e.encounter_id, e.uuid, e.encounter_datetime, e.voided, e.date_created, e.date_changed,
		       COALESCE(et.uuid, ''), COALESCE(et.name, ''),
		       COALESCE(l.uuid, ''), COALESCE(l.name, ''),
		       COALESCE(v.uuid, ''),
		       pe.uuid, COALESCE(nm.given_name, ''), COALESCE(nm.family_name, '')
		FROM encounter e
		LEFT JOIN encounter_type et ON et.encounter_type_id = e.encounter_type
		LEFT JOIN location l ON l.location_id = e.location_id
		LEFT JOIN visit v ON v.visit_id = e.visit_id`+fmt.Sprintf(patientNameJoin, "e.patient_id")+`
		WHERE e.uuid = $1`, uuid).
		Scan(&e.ID, &e.UUID, &e.EncounterDatetime, &e.Voided, &e.DateCreated, &e.DateChanged,
			&typeUUID, &typeName, &locUUID, &locName, &visitUUID,
			&patUUID, &given, &family)
	if err != nil {
		return nil, fmt.Errorf("encounter get %s: %w", uuid, db.NotFound(err))
	}
	e.Patient = patientStub(patUUID, given, family)
	if typeUUID != "" {
		e.EncounterType = &EncounterType{UUID: typeUUID, Name: typeName}
	}
	if locUUID != "" {
		e.Location = &admin.Location{UUID: locUUID, Name: locName}
	}
	if visitUUID != "" {
		if e.Visit, err = r.GetVisitByUUID(ctx, visitUUID); err != nil {
			return nil, err
		}
	}
	if err := r.loadProviders(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) loadProviders(ctx context.Context, e *Encounter) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ep.uuid, ep.voided, pr.uuid, COALESCE(pr.name, ''), COALESCE(pr.identifier, ''),
		       COALESCE(er.uuid, ''), COALESCE(er.name, '')
		FROM encounter_provider ep
		JOIN provider pr ON pr.provider_id = ep.provider_id
		LEFT JOIN encounter_role er ON er.encounter_role_id = ep.encounter_role_id
		WHERE ep.encounter_id = $1 AND NOT ep.voided
		ORDER BY ep.encounter_provider_id`, e.ID)
	if err != nil {
		return fmt.Errorf("encounter providers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ep EncounterProvider
		var pr identity.Provider
		var roleUUID, roleName string
		if err := rows.Scan(&ep.UUID, &ep.Voided, &pr.UUID, &pr.Name, &pr.Identifier, &roleUUID, &roleName); err != nil {
			return err
		}
		ep.Provider = &pr
		if roleUUID != "" {
			ep.Role = &EncounterRole{UUID: roleUUID, Name: roleName}
		}
		e.Providers = append(e.Providers, &ep)
	}
	return rows.Err()
}

func (r *repoPG) GetEncounterTypeByUUID(ctx context.Context, uuid string) (*EncounterType, error) {
	var t EncounterType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT uuid, name, COALESCE(description, '') FROM encounter_type WHERE uuid = $1`, uuid).
		Scan(&t.UUID, &t.Name, &t.Description)
	if err != nil {
		return nil, fmt.Errorf("encounter type %s: %w", uuid, db.NotFound(err))
	}
	return &t, nil
}

func (r *repoPG) GetEncounterRoleByUUID(ctx context.Context, uuid string) (*EncounterRole, error) {
	var role EncounterRole
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT uuid, name FROM encounter_role WHERE uuid = $1`, uuid).
		Scan(&role.UUID, &role.Name)
	if err != nil {
		return nil, fmt.Errorf("encounter role %s: %w", uuid, db.NotFound(err))
	}
	return &role, nil
}

func (r *repoPG) GetVisitByUUID(ctx context.Context, uuid string) (*Visit, error) {
	var v Visit
	var typeUUID, typeName, locUUID, locName string
	var patUUID, given, family string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT v.visit_id, v.uuid, v.date_started, v.date_stopped, v.voided,
		       COALESCE(vt.uuid, ''), COALESCE(vt.name, ''),
		       COALESCE(l.uuid, ''), COALESCE(l.name, ''),
		       pe.uuid, COALESCE(nm.given_name, ''), COALESCE(nm.family_name, '')
		FROM visit v
		LEFT JOIN visit_type vt ON vt.visit_type_id = v.visit_type_id
		LEFT JOIN location l ON l.location_id = v.location_id`+fmt.Sprintf(patientNameJoin, "v.patient_id")+`
		WHERE v.uuid = $1`, uuid).
		Scan(&v.ID, &v.UUID, &v.StartDatetime, &v.StopDatetime, &v.Voided,
			&typeUUID, &typeName, &locUUID, &locName,
			&patUUID, &given, &family)
	if err != nil {
		return nil, fmt.Errorf("visit get %s: %w", uuid, db.NotFound(err))
	}
	v.Patient = patientStub(patUUID, given, family)
	if typeUUID != "" {
		v.VisitType = &VisitType{UUID: typeUUID, Name: typeName}
	}
	if locUUID != "" {
		v.Location = &admin.Location{UUID: locUUID, Name: locName}
	}
	return &v, nil
}
