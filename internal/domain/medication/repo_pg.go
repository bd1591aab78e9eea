package medication

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/encounter"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/identity"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/domain/terminology"
	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

// conceptResolver hydrates concept columns through the terminology repository.
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

// -- Drug Repository --

type drugRepoPG struct {
	pool *pgxpool.Pool
	conceptResolver
}

func NewDrugRepoPG(pool *pgxpool.Pool, concepts terminology.ConceptRepository) DrugRepository {
	return &drugRepoPG{pool: pool, conceptResolver: conceptResolver{concepts: concepts}}
}

func (r *drugRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *drugRepoPG) GetByUUID(ctx context.Context, uuid string) (*Drug, error) {
	var d Drug
	var conceptUUID, formUUID string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT d.drug_id, d.uuid, COALESCE(d.name, ''), COALESCE(d.strength, ''),
		       d.maximum_daily_dose, d.minimum_daily_dose, d.retired, d.date_created, d.date_changed,
		       COALESCE(c.uuid, ''), COALESCE(f.uuid, '')
		FROM drug d
		LEFT JOIN concept c ON c.concept_id = d.concept_id
		LEFT JOIN concept f ON f.concept_id = d.dosage_form
		WHERE d.uuid = $1`, uuid).
		Scan(&d.ID, &d.UUID, &d.Name, &d.Strength,
			&d.MaximumDailyDose, &d.MinimumDailyDose, &d.Retired, &d.DateCreated, &d.DateChanged,
			&conceptUUID, &formUUID)
	if err != nil {
		return nil, fmt.Errorf("drug get %s: %w", uuid, db.NotFound(err))
	}
	if d.Concept, err = r.get(ctx, conceptUUID); err != nil {
		return nil, err
	}
	if d.DosageForm, err = r.get(ctx, formUUID); err != nil {
		return nil, err
	}
	if err := r.loadIngredients(ctx, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *drugRepoPG) loadIngredients(ctx context.Context, d *Drug) error {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT i.uuid, di.strength, COALESCE(u.uuid, '')
		FROM drug_ingredient di
		JOIN concept i ON i.concept_id = di.ingredient_id
		LEFT JOIN concept u ON u.concept_id = di.units
		WHERE di.drug_id = $1`, d.ID)
	if err != nil {
		return fmt.Errorf("drug ingredients: %w", err)
	}
	type row struct {
		ingredient, units string
		strength *float64
	}
	var found []row
	for rows.Next() {
		var rw row
		if err := rows.Scan(&rw.ingredient, &rw.strength, &rw.units); err != nil {
			rows.Close()
			return err
		}
		found = append(found, rw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, rw := range found {
		ing := &DrugIngredient{Strength: rw.strength}
		if ing.Ingredient, err = r.get(ctx, rw.ingredient); err != nil {
			return err
		}
		if ing.Units, err = r.get(ctx, rw.units); err != nil {
			return err
		}
		d.Ingredients = append(d.Ingredients, ing)
	}
	return nil
}

// -- Order Repository --

type orderRepoPG struct {
	pool  *pgxpool.Pool
	drugs DrugRepository
	conceptResolver
}

func NewOrderRepoPG(pool *pgxpool.Pool, concepts terminology.ConceptRepository, drugs DrugRepository) OrderRepository {
	return &orderRepoPG{pool: pool, drugs: drugs, conceptResolver: conceptResolver{concepts: concepts}}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const orderSelect = `
	SELECT o.order_id, o.uuid, COALESCE(o.order_number, ''), o.order_action, o.urgency,
	       o.date_activated, o.scheduled_date, o.date_stopped, o.auto_expire_date,
	       COALESCE(o.comment_to_fulfiller, ''), COALESCE(o.instructions, ''),
	       o.voided, o.date_created, o.date_changed,
	       COALESCE(c.uuid, ''), pe.uuid, COALESCE(e.uuid, ''), COALESCE(pr.uuid, ''), COALESCE(pr.name, ''),
	       COALESCE(cs.uuid, ''), COALESCE(cs.name, ''), COALESCE(prev.uuid, '')
	FROM orders o
	JOIN person pe ON pe.person_id = o.patient_id
	LEFT JOIN concept c ON c.concept_id = o.concept_id
	LEFT JOIN encounter e ON e.encounter_id = o.encounter_id
	LEFT JOIN provider pr ON pr.provider_id = o.orderer
	LEFT JOIN care_setting cs ON cs.care_setting_id = o.care_setting
	LEFT JOIN orders prev ON prev.order_id = o.previous_order_id`

func (r *orderRepoPG) getOrder(ctx context.Context, uuid string) (*Order, error) {
	var o Order
	var conceptUUID, patientUUID, encUUID, providerUUID, providerName, careUUID, careName, prevUUID string
	err := r.conn(ctx).QueryRow(ctx, orderSelect+` WHERE o.uuid = $1`, uuid).
		Scan(&o.ID, &o.UUID, &o.OrderNumber, &o.Action, &o.Urgency,
			&o.DateActivated, &o.ScheduledDate, &o.DateStopped, &o.AutoExpireDate,
			&o.CommentToFulfiller, &o.Instructions,
			&o.Voided, &o.DateCreated, &o.DateChanged,
			&conceptUUID, &patientUUID, &encUUID, &providerUUID, &providerName,
			&careUUID, &careName, &prevUUID)
	if err != nil {
		return nil, fmt.Errorf("order get %s: %w", uuid, db.NotFound(err))
	}
	if o.Concept, err = r.get(ctx, conceptUUID); err != nil {
		return nil, err
	}
	o.Patient = &identity.Patient{}
	o.Patient.UUID = patientUUID
	if encUUID != "" {
		o.Encounter = &encounter.Encounter{UUID: encUUID}
	}
	if providerUUID != "" {
		o.Orderer = &identity.Provider{UUID: providerUUID, Name: providerName}
	}
	if careUUID != "" {
		o.CareSetting = &CareSetting{UUID: careUUID, Name: careName}
	}
	if prevUUID != "" {
		o.PreviousOrder = &Order{UUID: prevUUID}
	}
	return &o, nil
}

func (r *orderRepoPG) GetByUUID(ctx context.Context, uuid string) (*Order, error) {
	return r.getOrder(ctx, uuid)
}

func (r *orderRepoPG) GetDrugOrderByUUID(ctx context.Context, uuid string) (*DrugOrder, error) {
	o, err := r.getOrder(ctx, uuid)
	if err != nil {
		return nil, err
	}
	do := &DrugOrder{Order: *o}
	var drugUUID, doseUnits, route, durationUnits, quantityUnits, frequencyUUID string
	err = r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(d.uuid, ''), COALESCE(dro.drug_non_coded, ''), dro.dose, COALESCE(du.uuid, ''),
		       COALESCE(rt.uuid, ''), dro.as_needed, COALESCE(dro.as_needed_condition, ''),
		       dro.duration, COALESCE(dnu.uuid, ''), dro.quantity, COALESCE(qu.uuid, ''),
		       dro.num_refills, COALESCE(dro.dosing_instructions, ''), COALESCE(ofr.uuid, '')
		FROM drug_order dro
		LEFT JOIN drug d ON d.drug_id = dro.drug_inventory_id
		LEFT JOIN concept du ON du.concept_id = dro.dose_units
		LEFT JOIN concept rt ON rt.concept_id = dro.route
		LEFT JOIN concept dnu ON dnu.concept_id = dro.duration_units
		LEFT JOIN concept qu ON qu.concept_id = dro.quantity_units
		LEFT JOIN order_frequency ofr ON ofr.order_frequency_id = dro.frequency
		WHERE dro.order_id = $1`, o.ID).
		Scan(&drugUUID, &do.DrugNonCoded, &do.Dose, &doseUnits,
			&route, &do.AsNeeded, &do.AsNeededCondition,
			&do.Duration, &durationUnits, &do.Quantity, &quantityUnits,
			&do.NumRefills, &do.DosingInstructions, &frequencyUUID)
	if err != nil {
		return nil, fmt.Errorf("drug order %s: %w", uuid, db.NotFound(err))
	}
	if drugUUID != "" {
		if do.Drug, err = r.drugs.GetByUUID(ctx, drugUUID); err != nil {
			return nil, err
		}
	}
	for _, c := range []struct {
		uuid string
		dst  **terminology.Concept
	}{
		{doseUnits, &do.DoseUnits},
		{route, &do.Route},
		{durationUnits, &do.DurationUnits},
		{quantityUnits, &do.QuantityUnits},
	} {
		if *c.dst, err = r.get(ctx, c.uuid); err != nil {
			return nil, err
		}
	}
	if frequencyUUID != "" {
		if do.Frequency, err = r.getFrequency(ctx, `ofr.uuid = $1`, frequencyUUID); err != nil {
			return nil, err
		}
	}
	return do, nil
}

func (r *orderRepoPG) getFrequency(ctx context.Context, where, arg string) (*OrderFrequency, error) {
	var f OrderFrequency
	var conceptUUID string
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT ofr.uuid, ofr.frequency_per_day, c.uuid
		FROM order_frequency ofr
		JOIN concept c ON c.concept_id = ofr.concept_id
		WHERE `+where+` AND NOT ofr.retired
		LIMIT 1`, arg).
		Scan(&f.UUID, &f.FrequencyPerDay, &conceptUUID)
	if err != nil {
		return nil, fmt.Errorf("order frequency %s: %w", arg, db.NotFound(err))
	}
	if f.Concept, err = r.get(ctx, conceptUUID); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *orderRepoPG) GetOrderFrequencyByConceptUUID(ctx context.Context, conceptUUID string) (*OrderFrequency, error) {
	return r.getFrequency(ctx, `c.uuid = $1`, conceptUUID)
}
