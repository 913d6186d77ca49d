package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ticketdesk.org/internal/access"
)

// UserStore persists identities and their credential digests.
type UserStore interface {
	// Create stores a new identity. A duplicate email reports
	// ErrAlreadyExists.
	Create(ctx context.Context, email, passwordHash string, role access.Role) (Identity, error)
	Get(ctx context.Context, id int64) (Identity, error)
	List(ctx context.Context) ([]Identity, error)
	Update(ctx context.Context, id int64, upd IdentityUpdate) (Identity, error)
	// Delete removes the identity; owned resources cascade in the store.
	Delete(ctx context.Context, id int64) error
}

// IdentityUpdate carries optional field changes; nil means unchanged.
// Password arrives hashed by the directory, never in the clear.
type IdentityUpdate struct {
	Email    *string
	Password *string
	Role     *access.Role
}

// Directory provisions and maintains accounts. The store only ever sees
// argon2id digests.
type Directory struct {
	store UserStore
}

// NewDirectory constructs the account provisioning service.
func NewDirectory(store UserStore) (*Directory, error) {
	if store == nil {
		return nil, errors.New("auth: user store is required")
	}
	return &Directory{store: store}, nil
}

// CreateUser provisions an account. The role string parses through the
// least-privilege default, so a bad role never provisions an admin.
func (d *Directory) CreateUser(ctx context.Context, email, password, role string) (Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	if strings.TrimSpace(password) == "" {
		return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}
	return d.store.Create(ctx, email, hash, access.ParseRole(role))
}

// GetUser fetches one identity.
func (d *Directory) GetUser(ctx context.Context, id int64) (Identity, error) {
	if id <= 0 {
		return Identity{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return d.store.Get(ctx, id)
}

// ListUsers returns every provisioned identity.
func (d *Directory) ListUsers(ctx context.Context) ([]Identity, error) {
	return d.store.List(ctx)
}

// UpdateUser applies an admin edit. A supplied password is hashed before
// it reaches the store.
func (d *Directory) UpdateUser(ctx context.Context, id int64, upd IdentityUpdate) (Identity, error) {
	if id <= 0 {
		return Identity{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return Identity{}, err
		}
		upd.Email = &email
	}
	if upd.Password != nil {
		if strings.TrimSpace(*upd.Password) == "" {
			return Identity{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		hash, err := HashPassword(*upd.Password)
		if err != nil {
			return Identity{}, err
		}
		upd.Password = &hash
	}
	if upd.Role != nil {
		role := access.ParseRole(string(*upd.Role))
		upd.Role = &role
	}
	return d.store.Update(ctx, id, upd)
}

// DeleteUser removes an account and cascades its owned resources.
func (d *Directory) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return d.store.Delete(ctx, id)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	return email, nil
}
