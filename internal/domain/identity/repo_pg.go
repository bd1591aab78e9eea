package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/admin"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

// personLoader fills a person's collections from the person_* tables.
type personLoader struct {
	pool *pgxpool.Pool
}

func (l personLoader) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, l.pool)
}

const personCols = `p.person_id, p.uuid, COALESCE(p.gender, ''), p.birthdate, p.birthdate_estimated,
	p.dead, p.death_date, p.voided, p.date_created, p.date_changed`

func (l personLoader) scanPerson(row interface{ Scan(...interface{}) error }, p *Person) error {
	return row.Scan(&p.ID, &p.UUID, &p.Gender, &p.Birthdate, &p.BirthdateEstimated,
		&p.Dead, &p.DeathDate, &p.Voided, &p.DateCreated, &p.DateChanged)
}

func (l personLoader) load(ctx context.Context, p *Person) error {
	if err := l.loadNames(ctx, p); err != nil {
		return err
	}
	if err := l.loadAddresses(ctx, p); err != nil {
		return err
	}
	return l.loadAttributes(ctx, p)
}

func (l personLoader) loadNames(ctx context.Context, p *Person) error {
	rows, err := l.conn(ctx).Query(ctx, `
		SELECT uuid, preferred, COALESCE(prefix, ''), COALESCE(given_name, ''), COALESCE(middle_name, ''),
		       COALESCE(family_name_prefix, ''), COALESCE(family_name, ''), COALESCE(family_name2, ''),
		       COALESCE(family_name_suffix, ''), COALESCE(degree, ''), voided, date_created, date_changed
		FROM person_name
		WHERE person_id = $1 AND NOT voided
		ORDER BY preferred DESC, person_name_id`, p.ID)
	if err != nil {
		return fmt.Errorf("person names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var n PersonName
		if err := rows.Scan(&n.UUID, &n.Preferred, &n.Prefix, &n.GivenName, &n.MiddleName,
			&n.FamilyNamePrefix, &n.FamilyName, &n.FamilyName2,
			&n.FamilyNameSuffix, &n.Degree, &n.Voided, &n.DateCreated, &n.DateChanged); err != nil {
			return err
		}
		p.Names = append(p.Names, &n)
	}
	return rows.Err()
}

func (l personLoader) loadAddresses(ctx context.Context, p *Person) error {
	rows, err := l.conn(ctx).Query(ctx, `
		SELECT uuid, preferred,
		       COALESCE(address1, ''), COALESCE(address2, ''), COALESCE(address3, ''), COALESCE(address4, ''),
		       COALESCE(address5, ''), COALESCE(address6, ''), COALESCE(address7, ''), COALESCE(address8, ''),
		       COALESCE(address9, ''), COALESCE(address10, ''), COALESCE(address11, ''), COALESCE(address12, ''),
		       COALESCE(address13, ''), COALESCE(address14, ''), COALESCE(address15, ''),
		       COALESCE(city_village, ''), COALESCE(county_district, ''), COALESCE(state_province, ''),
		       COALESCE(postal_code, ''), COALESCE(country, ''),
		       start_date, end_date, voided, date_created, date_changed
		FROM person_address
		WHERE person_id = $1 AND NOT voided
		ORDER BY preferred DESC, person_address_id`, p.ID)
	if err != nil {
		return fmt.Errorf("person addresses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a PersonAddress
		dest := []interface{}{&a.UUID, &a.Preferred}
		for _, line := range a.Lines() {
			dest = append(dest, line)
		}
		dest = append(dest, &a.CityVillage, &a.CountyDistrict, &a.StateProvince,
			&a.PostalCode, &a.Country,
			&a.StartDate, &a.EndDate, &a.Voided, &a.DateCreated, &a.DateChanged)
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		p.Addresses = append(p.Addresses, &a)
	}
	return rows.Err()
}

func (l personLoader) loadAttributes(ctx context.Context, p *Person) error {
	rows, err := l.conn(ctx).Query(ctx, `
		SELECT pa.uuid, pa.value, pa.voided, pat.uuid, pat.name, COALESCE(pat.format, '')
		FROM person_attribute pa
		JOIN person_attribute_type pat ON pat.person_attribute_type_id = pa.person_attribute_type_id
		WHERE pa.person_id = $1 AND NOT pa.voided
		ORDER BY pa.person_attribute_id`, p.ID)
	if err != nil {
		return fmt.Errorf("person attributes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a PersonAttribute
		var t PersonAttributeType
		if err := rows.Scan(&a.UUID, &a.Value, &a.Voided, &t.UUID, &t.Name, &t.Format); err != nil {
			return err
		}
		a.Type = &t
		p.Attributes = append(p.Attributes, &a)
	}
	return rows.Err()
}

func (l personLoader) getPerson(ctx context.Context, where string, arg interface{}) (*Person, error) {
	var p Person
	err := l.scanPerson(l.conn(ctx).QueryRow(ctx, `SELECT `+personCols+` FROM person p WHERE `+where, arg), &p)
	if err != nil {
		return nil, db.NotFound(err)
	}
	if err := l.load(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Person Repository --

type personRepoPG struct {
	personLoader
}

func NewPersonRepoPG(pool *pgxpool.Pool) PersonRepository {
	return &personRepoPG{personLoader{pool: pool}}
}

func (r *personRepoPG) GetAttributeTypeByUUID(ctx context.Context, uuid string) (*PersonAttributeType, error) {
	var t PersonAttributeType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT uuid, name, COALESCE(format, '') FROM person_attribute_type WHERE uuid = $1`, uuid).
		Scan(&t.UUID, &t.Name, &t.Format)
	if err != nil {
		return nil, fmt.Errorf("person attribute type %s: %w", uuid, db.NotFound(err))
	}
	return &t, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	personLoader
}

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{personLoader{pool: pool}}
}

func (r *patientRepoPG) GetByUUID(ctx context.Context, uuid string) (*Patient, error) {
	person, err := r.getPerson(ctx,
		`p.uuid = $1 AND EXISTS (SELECT 1 FROM patient pt WHERE pt.patient_id = p.person_id AND NOT pt.voided)`, uuid)
	if err != nil {
		return nil, fmt.Errorf("patient get %s: %w", uuid, err)
	}
	patient := &Patient{Person: *person}
	if err := r.loadIdentifiers(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (r *patientRepoPG) loadIdentifiers(ctx context.Context, p *Patient) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT pi.uuid, pi.identifier, pi.preferred, pi.voided,
		       pit.uuid, pit.name, COALESCE(pit.description, ''), pit.retired,
		       COALESCE(l.uuid, ''), COALESCE(l.name, '')
		FROM patient_identifier pi
		JOIN patient_identifier_type pit ON pit.patient_identifier_type_id = pi.identifier_type
		LEFT JOIN location l ON l.location_id = pi.location_id
		WHERE pi.patient_id = $1 AND NOT pi.voided
		ORDER BY pi.preferred DESC, pi.patient_identifier_id`, p.ID)
	if err != nil {
		return fmt.Errorf("patient identifiers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id PatientIdentifier
		var t PatientIdentifierType
		var loc admin.Location
		if err := rows.Scan(&id.UUID, &id.Identifier, &id.Preferred, &id.Voided,
			&t.UUID, &t.Name, &t.Description, &t.Retired,
			&loc.UUID, &loc.Name); err != nil {
			return err
		}
		id.Type = &t
		if loc.UUID != "" {
			id.Location = &loc
		}
		p.Identifiers = append(p.Identifiers, &id)
	}
	return rows.Err()
}

func (r *patientRepoPG) getIdentifierType(ctx context.Context, column, value string) (*PatientIdentifierType, error) {
	var t PatientIdentifierType
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT uuid, name, COALESCE(description, ''), retired
		FROM patient_identifier_type
		WHERE `+column+` = $1
		ORDER BY retired, patient_identifier_type_id LIMIT 1`, value).
		Scan(&t.UUID, &t.Name, &t.Description, &t.Retired)
	if err != nil {
		return nil, fmt.Errorf("identifier type %s: %w", value, db.NotFound(err))
	}
	return &t, nil
}

func (r *patientRepoPG) GetIdentifierTypeByUUID(ctx context.Context, uuid string) (*PatientIdentifierType, error) {
	return r.getIdentifierType(ctx, "uuid", uuid)
}

func (r *patientRepoPG) GetIdentifierTypeByName(ctx context.Context, name string) (*PatientIdentifierType, error) {
	return r.getIdentifierType(ctx, "name", name)
}

// -- Provider Repository --

type providerRepoPG struct {
	personLoader
}

func NewProviderRepoPG(pool *pgxpool.Pool) ProviderRepository {
	return &providerRepoPG{personLoader{pool: pool}}
}

func (r *providerRepoPG) get(ctx context.Context, column, value string) (*Provider, error) {
	var p Provider
	var personUUID string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT pr.provider_id, pr.uuid, COALESCE(pr.identifier, ''), COALESCE(pr.name, ''),
		       COALESCE(pe.uuid, ''), pr.retired, pr.date_created, pr.date_changed
		FROM provider pr
		LEFT JOIN person pe ON pe.person_id = pr.person_id
		WHERE pr.`+column+` = $1
		ORDER BY pr.retired, pr.provider_id LIMIT 1`, value).
		Scan(&p.ID, &p.UUID, &p.Identifier, &p.Name, &personUUID, &p.Retired, &p.DateCreated, &p.DateChanged)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", value, db.NotFound(err))
	}
	if personUUID != "" {
		person, err := r.getPerson(ctx, `p.uuid = $1`, personUUID)
		if err != nil {
			return nil, fmt.Errorf("provider person %s: %w", personUUID, err)
		}
		p.Person = person
	}
	return &p, nil
}

func (r *providerRepoPG) GetByUUID(ctx context.Context, uuid string) (*Provider, error) {
	return r.get(ctx, "uuid", uuid)
}

func (r *providerRepoPG) GetByIdentifier(ctx context.Context, identifier string) (*Provider, error) {
	return r.get(ctx, "identifier", identifier)
}
