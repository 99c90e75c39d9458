package service

import (
	"context"
	"fmt"

	"github.com/warungtech/gatekit/internal/auth/domain"
	"github.com/warungtech/gatekit/internal/auth/store"
	"github.com/warungtech/gatekit/pkg/idx"
)

// PermissionService manages the flat permission namespace api keys draw
// their grants from.
type PermissionService struct {
	Store store.Store
}

func (s *PermissionService) FindAll(ctx context.Context) ([]domain.Permission, error) {
	return s.Store.Permissions().ListPermissions(ctx)
}

func (s *PermissionService) Create(ctx context.Context, name string) (domain.Permission, error) {
	if name == "" {
		return domain.Permission{}, fmt.Errorf("%w: name is required", ErrValidation)
	}

	p := domain.Permission{
		ID:   idx.New().String(),
		Name: name,
	}
	if err := s.Store.Permissions().CreatePermission(ctx, p); err != nil {
		return domain.Permission{}, err
	}
	return p, nil
}
