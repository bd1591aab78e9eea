package clinical

import "context"

type ObsRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Obs, error)
}

type ConditionRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Condition, error)
}

type AllergyRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Allergy, error)
}
