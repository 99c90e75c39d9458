package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/cryptox"
	"github.com/warungtech/gatekit/pkg/idx"
	"github.com/warungtech/gatekit/pkg/slogx"
)

var (
	ErrKeyNotFound = errors.New("api_key_not_found")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation_failed")
)

// APIKeyTTL is the fixed validity window for new keys. Rotation and
// revocation are not supported; an expired key is simply rejected.
const APIKeyTTL = 365 * 24 * time.Hour

// APIKeyService generates, stores and validates machine-to-machine
// key/secret pairs bound to a permission set.
type APIKeyService struct {
	Store store.Store
}

// Create persists a new api key owned by ownerID, granting the given
// permission names. Every name must already exist as a permission;
// unknown names fail with ErrValidation.
func (s *APIKeyService) Create(ctx context.Context, name string, permissions []string, ownerID string) (domain.APIKey, error) {
	if name == "" {
		return domain.APIKey{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(permissions) == 0 {
		return domain.APIKey{}, fmt.Errorf("%w: at least one permission is required", ErrValidation)
	}

	key, secret, err := cryptox.GenerateAPIKey()
	if err != nil {
		return domain.APIKey{}, err
	}

	record := domain.APIKey{
		ID:          idx.New().String(),
		Name:        name,
		Key:         key,
		Secret:      secret,
		UserID:      ownerID,
		Permissions: permissions,
		ExpiresAt:   time.Now().Add(APIKeyTTL),
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		perms, err := tx.Permissions().GetPermissionsByNames(ctx, permissions)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: unknown permission name", ErrValidation)
			}
			return err
		}

		permIDs := make([]string, len(perms))
		for i, p := range perms {
			permIDs[i] = p.ID
		}
		return tx.APIKeys().CreateAPIKey(ctx, record, permIDs)
	})
	if err != nil {
		return domain.APIKey{}, err
	}

	slogx.FromContext(ctx).Info("api key created", "name", name, "key", key, "owner", ownerID)
	return record, nil
}

// FindAll returns the administrative listing projection.
func (s *APIKeyService) FindAll(ctx context.Context) ([]domain.APIKeyListing, error) {
	return s.Store.APIKeys().ListAPIKeys(ctx)
}

// Validate authenticates a key/secret pair and authorizes it against the
// required permissions with ANY-of semantics: one match is enough.
//
// Failure causes stay distinct so callers can map them to distinct
// statuses: unknown key vs. bad secret / expired / insufficient
// permissions. Verification failures are terminal; nothing here retries.
func (s *APIKeyService) Validate(ctx context.Context, key, secret string, required []string) error {
	record, err := s.Store.APIKeys().GetAPIKeyByKey(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}

	if !cryptox.SecretsEqual(secret, record.Secret) {
		return fmt.Errorf("%w: secret mismatch", ErrForbidden)
	}

	if !time.Now().Before(record.ExpiresAt) {
		return fmt.Errorf("%w: api key expired", ErrForbidden)
	}

	granted := make(map[string]struct{}, len(record.Permissions))
	for _, p := range record.Permissions {
		granted[p] = struct{}{}
	}
	for _, want := range required {
		if _, ok := granted[want]; ok {
			return nil
		}
	}
	return fmt.Errorf("%w: insufficient permissions", ErrForbidden)
}
