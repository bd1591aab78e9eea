package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openmrs/openmrs-module-fhir2-sub005/internal/platform/db"
)

type locationRepoPG struct {
	pool *pgxpool.Pool
}

func NewLocationRepoPG(pool *pgxpool.Pool) LocationRepository {
	return &locationRepoPG{pool: pool}
}

func (r *locationRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *locationRepoPG) GetByUUID(ctx context.Context, uuid string) (*Location, error) {
	var l Location
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT l.location_id, l.uuid, l.name, COALESCE(l.description, ''),
		       COALESCE(l.address1, ''), COALESCE(l.city_village, ''), COALESCE(l.country, ''),
		       COALESCE(p.uuid, ''), l.retired, l.date_created, l.date_changed
		FROM location l
		LEFT JOIN location p ON p.location_id = l.parent_location
		WHERE l.uuid = $1`, uuid).
		Scan(&l.ID, &l.UUID, &l.Name, &l.Description,
			&l.Address1, &l.CityVillage, &l.Country,
			&l.ParentUUID, &l.Retired, &l.DateCreated, &l.DateChanged)
	if err != nil {
		return nil, fmt.Errorf("location get %s: %w", uuid, db.NotFound(err))
	}
	return &l, nil
}
