package store

import (
	"context"
	"errors"

	"github.com/warungtech/gatekit/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for
// now) implement it. Sub-repositories keep concerns tidy and make it
// obvious which repo set a transaction is scoped to.
type Store interface {
	Users() Users
	APIKeys() APIKeys
	Permissions() Permissions

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST Commit() or Rollback() the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing on nil and
	// rolling back on error. Preferred over Tx for multi-step writes
	// (e.g. api-key creation with permission links).
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos, plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during password login and refresh
	// re-validation.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// GetUserByEmail is used during federated login.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// ListUsers returns all users ordered by creation date.
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type APIKeys interface {
	// CreateAPIKey inserts a key record and its permission links. The
	// permission ids must already be resolved; run inside WithTx.
	CreateAPIKey(ctx context.Context, k domain.APIKey, permissionIDs []string) error

	// GetAPIKeyByKey resolves a record by its public key identifier,
	// with granted permission names populated.
	GetAPIKeyByKey(ctx context.Context, key string) (domain.APIKey, error)

	// ListAPIKeys returns the administrative listing projection.
	ListAPIKeys(ctx context.Context) ([]domain.APIKeyListing, error)
}

type Permissions interface {
	// CreatePermission inserts a new permission (unique name).
	CreatePermission(ctx context.Context, p domain.Permission) error

	// GetPermissionByName fetches a permission by its name.
	GetPermissionByName(ctx context.Context, name string) (domain.Permission, error)

	// GetPermissionsByNames resolves a set of names. Any missing name
	// yields ErrNotFound; the create path treats that as a validation
	// failure.
	GetPermissionsByNames(ctx context.Context, names []string) ([]domain.Permission, error)

	// ListPermissions returns all permissions.
	ListPermissions(ctx context.Context) ([]domain.Permission, error)
}
