package service

import (
	"context"
	"encoding/json"
	"fmt"

	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/internal/repository"
)

type RoleResponse struct {
	ID          uint              `json:"id"`
	RoleName    string            `json:"role_name"`
	Permissions []auth.Capability `json:"permissions"`
}

type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	// ResolveRole maps a role name onto its seeded row. Unknown names are a
	// validation error.
	ResolveRole(ctx context.Context, name string) (*model.Role, auth.Role, error)
}

type roleService struct {
	roleRepo repository.RoleRepository
}

func NewRoleService(roleRepo repository.RoleRepository) RoleService {
	return &roleService{roleRepo: roleRepo}
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	res := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		res = append(res, toRoleResponse(r))
	}
	return res, nil
}

func (s *roleService) ResolveRole(ctx context.Context, name string) (*model.Role, auth.Role, error) {
	role, ok := auth.LookupRole(name)
	if !ok {
		return nil, "", errUnknownRole(name)
	}
	row, err := s.roleRepo.GetByName(ctx, string(role))
	if err != nil {
		return nil, "", loadError(err, "Role", role)
	}
	return row, role, nil
}

func toRoleResponse(r model.Role) RoleResponse {
	perms := []auth.Capability{}
	if len(r.Permissions) > 0 {
		_ = json.Unmarshal(r.Permissions, &perms)
	}
	return RoleResponse{ID: r.ID, RoleName: r.RoleName, Permissions: perms}
}
