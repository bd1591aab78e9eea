package encounter

import "context"

// Repository loads encounters with their patient, location and provider
// references populated as stubs carrying uuid and display name.
type Repository interface {
	GetByUUID(ctx context.Context, uuid string) (*Encounter, error)
	GetEncounterTypeByUUID(ctx context.Context, uuid string) (*EncounterType, error)
	GetEncounterRoleByUUID(ctx context.Context, uuid string) (*EncounterRole, error)
	GetVisitByUUID(ctx context.Context, uuid string) (*Visit, error)
}
