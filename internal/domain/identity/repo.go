package identity

import "context"

type PatientRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Patient, error)
	GetIdentifierTypeByUUID(ctx context.Context, uuid string) (*PatientIdentifierType, error)
	GetIdentifierTypeByName(ctx context.Context, name string) (*PatientIdentifierType, error)
}

// PersonRepository covers the person metadata the translators read.
type PersonRepository interface {
	GetAttributeTypeByUUID(ctx context.Context, uuid string) (*PersonAttributeType, error)
}

type ProviderRepository interface {
	GetByUUID(ctx context.Context, uuid string) (*Provider, error)
	GetByIdentifier(ctx context.Context, identifier string) (*Provider, error)
}
