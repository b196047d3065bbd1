package identity

import "context"

// Store describes the persistence the identity service needs. Implementations
// must return ErrNotFound for missing rows and ErrAlreadyExists on duplicate
// emails.
type Store interface {
	Create(ctx context.Context, ident *Identity, passwordHash string) error
	Find(ctx context.Context, id string) (*Identity, error)
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	List(ctx context.Context) ([]*Identity, error)
	PasswordHash(ctx context.Context, id string) (string, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
	// UpdateMetadata replaces the whole metadata bag. Merge semantics live in
	// the service, which reads, merges and writes back.
	UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error
}
