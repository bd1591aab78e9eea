package medication

import "context"

type DrugRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Drug, error)
}

type OrderRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Order, error)
	GetDrugOrderByUUID(ctx context.Context, uuid string) (*DrugOrder, error)
	GetOrderFrequencyByConceptUUID(ctx context.Context, conceptUUID string) (*OrderFrequency, error)
}
