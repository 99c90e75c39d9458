package sqlite

import (
	"context"

	"github.com/warungtech/gatekit/internal/auth/domain"
)

type apiKeysRepo struct {
	db dbtx
}

func (r *apiKeysRepo) CreateAPIKey(ctx context.Context, k domain.APIKey, permissionIDs []string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, key, secret, user_id, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.Name, k.Key, k.Secret, k.UserID, k.ExpiresAt)
	if err != nil {
		return mapConstraint(err)
	}

	for _, pid := range permissionIDs {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO api_key_permissions (api_key_id, permission_id) VALUES (?, ?)`,
			k.ID, pid)
		if err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *apiKeysRepo) GetAPIKeyByKey(ctx context.Context, key string) (domain.APIKey, error) {
	var k domain.APIKey
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, key, secret, user_id, expires_at, created_at FROM api_keys WHERE key = ?`,
		key).Scan(&k.ID, &k.Name, &k.Key, &k.Secret, &k.UserID, &k.ExpiresAt, &k.CreatedAt)
	if err != nil {
		return domain.APIKey{}, mapNotFound(err)
	}

	perms, err := r.permissionNames(ctx, k.ID)
	if err != nil {
		return domain.APIKey{}, err
	}
	k.Permissions = perms
	return k, nil
}

func (r *apiKeysRepo) ListAPIKeys(ctx context.Context) ([]domain.APIKeyListing, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT k.id, k.name, k.key, k.secret, k.expires_at, u.name
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		ORDER BY k.created_at, k.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []domain.APIKeyListing
	for rows.Next() {
		var l domain.APIKeyListing
		if err := rows.Scan(&l.ID, &l.Name, &l.Key, &l.Secret, &l.ExpiresAt, &l.User); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range listings {
		perms, err := r.permissionNames(ctx, listings[i].ID)
		if err != nil {
			return nil, err
		}
		listings[i].Permissions = perms
	}
	return listings, nil
}

func (r *apiKeysRepo) permissionNames(ctx context.Context, apiKeyID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.name
		FROM api_key_permissions kp
		JOIN permissions p ON p.id = kp.permission_id
		WHERE kp.api_key_id = ?
		ORDER BY p.name`, apiKeyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
