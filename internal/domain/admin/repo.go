package admin

import "context"

type LocationRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Location, error)
}
