package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var UserSorting = pagination.Sorting{
	Allowed: []string{"id", "username", "email", "status", "created_on", "last_login"},
	Default: "created_on",
}

// DTOs for Request validation
type CreateUserRequest struct {
	Username string     `json:"username" binding:"required,min=2,max=100"`
	Email    string     `json:"email" binding:"required,email"`
	Role     string     `json:"role" binding:"required"`
	AuthID   *uuid.UUID `json:"auth_id"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=2,max=100"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Role     *string `json:"role"`
	Status   *string `json:"status" binding:"omitempty,oneof=Active Inactive"`
}

// DTO for returning User without exposing sensitive data
type UserResponse struct {
	ID           uint              `json:"id"`
	AuthID       *uuid.UUID        `json:"auth_id,omitempty"`
	Username     string            `json:"username"`
	Email        string            `json:"email"`
	Role         string            `json:"role"`
	Status       string            `json:"status"`
	LastLogin    *time.Time        `json:"last_login,omitempty"`
	CreatedOn    time.Time         `json:"created_on"`
	Capabilities []auth.Capability `json:"capabilities,omitempty"`
}

type UserService interface {
	CreateUser(ctx context.Context, actor *auth.Principal, req CreateUserRequest) (*UserResponse, error)
	GetUserByID(ctx context.Context, id uint) (*UserResponse, error)
	Me(ctx context.Context, actor *auth.Principal) (*UserResponse, error)
	ListUsers(ctx context.Context, filter repository.UserFilter, p pagination.Params) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, actor *auth.Principal, id uint, req UpdateUserRequest) (*UserResponse, error)
	// DeleteUser hard-deletes, or deactivates when other rows reference the
	// user. The bool reports deactivation.
	DeleteUser(ctx context.Context, actor *auth.Principal, id uint) (bool, error)
	// Authenticate maps a verified identity onto an active local user.
	Authenticate(ctx context.Context, ident *auth.Identity) (*auth.Principal, error)
}

type userService struct {
	txManager    repository.TransactionManager
	userRepo     repository.UserRepository
	roles        RoleService
	activityRepo repository.ActivityRepository
	policy       *auth.Policy
	log          *logger.Logger
}

func NewUserService(
	txManager repository.TransactionManager,
	userRepo repository.UserRepository,
	roles RoleService,
	activityRepo repository.ActivityRepository,
	policy *auth.Policy,
	log *logger.Logger,
) UserService {
	return &userService{
		txManager:    txManager,
		userRepo:     userRepo,
		roles:        roles,
		activityRepo: activityRepo,
		policy:       policy,
		log:          log.With("service", "UserService"),
	}
}

func errUnknownRole(name string) error {
	names := make([]string, 0, len(auth.AllRoles))
	for _, r := range auth.AllRoles {
		names = append(names, string(r))
	}
	return apperr.Validation("unknown role %q; expected one of %s", name, strings.Join(names, ", "))
}

func (s *userService) CreateUser(ctx context.Context, actor *auth.Principal, req CreateUserRequest) (*UserResponse, error) {
	roleRow, _, err := s.roles.ResolveRole(ctx, req.Role)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, 0, req.Email, req.Username); err != nil {
		return nil, err
	}

	user := model.User{
		AuthID:   req.AuthID,
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		RoleID:   roleRow.ID,
		Status:   model.UserStatusActive,
	}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Create(txCtx, &user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("a user with this email, username or identity already exists")
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionCreate, model.EntityUser, user.ID,
			map[string]string{"username": user.Username, "role": roleRow.RoleName})
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, user.ID)
}

func (s *userService) ensureUnique(ctx context.Context, selfID uint, email, username string) error {
	if email != "" {
		existing, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(email))
		if err == nil && existing.ID != selfID {
			return apperr.Conflict("a user with email %s already exists", email)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check email: %w", err)
		}
	}
	if username != "" {
		existing, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
		if err == nil && existing.ID != selfID {
			return apperr.Conflict("username %s is taken", username)
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check username: %w", err)
		}
	}
	return nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, loadError(err, model.EntityUser, id)
	}
	resp := toUserResponse(*user)
	return &resp, nil
}

func (s *userService) Me(ctx context.Context, actor *auth.Principal) (*UserResponse, error) {
	resp, err := s.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	for _, c := range auth.AllCapabilities {
		if s.policy.Can(actor.Role, c) {
			resp.Capabilities = append(resp.Capabilities, c)
		}
	}
	return resp, nil
}

func (s *userService) ListUsers(ctx context.Context, filter repository.UserFilter, p pagination.Params) ([]UserResponse, int64, error) {
	users, total, err := s.userRepo.List(ctx, filter, p)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	res := make([]UserResponse, 0, len(users))
	for _, u := range users {
		res = append(res, toUserResponse(u))
	}
	return res, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, actor *auth.Principal, id uint, req UpdateUserRequest) (*UserResponse, error) {
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return nil, loadError(err, model.EntityUser, id)
	}

	fields := map[string]interface{}{}
	if req.Username != nil {
		fields["username"] = strings.TrimSpace(*req.Username)
	}
	if req.Email != nil {
		fields["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Role != nil {
		roleRow, _, err := s.roles.ResolveRole(ctx, *req.Role)
		if err != nil {
			return nil, err
		}
		fields["role_id"] = roleRow.ID
	}
	if req.Status != nil {
		if id == actor.UserID && *req.Status == model.UserStatusInactive {
			return nil, apperr.Validation("you cannot deactivate your own account")
		}
		fields["status"] = *req.Status
	}
	if len(fields) == 0 {
		return nil, apperr.Validation("no fields to update")
	}

	var email, username string
	if req.Email != nil {
		email = *req.Email
	}
	if req.Username != nil {
		username = *req.Username
	}
	if err := s.ensureUnique(ctx, id, email, username); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Updates(txCtx, id, fields); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("a user with this email or username already exists")
			}
			return loadError(err, model.EntityUser, id)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionUpdate, model.EntityUser, id, fields)
	})
	if err != nil {
		return nil, err
	}
	return s.GetUserByID(ctx, id)
}

func (s *userService) DeleteUser(ctx context.Context, actor *auth.Principal, id uint) (bool, error) {
	if id == actor.UserID {
		return false, apperr.Validation("you cannot delete your own account")
	}

	deactivated := false
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.userRepo.GetByID(txCtx, id); err != nil {
			return loadError(err, model.EntityUser, id)
		}
		dependents, err := s.userRepo.CountDependents(txCtx, id)
		if err != nil {
			return fmt.Errorf("failed to count user dependents: %w", err)
		}

		if dependents > 0 {
			deactivated = true
			if err := s.userRepo.Updates(txCtx, id, map[string]interface{}{"status": model.UserStatusInactive}); err != nil {
				return fmt.Errorf("failed to deactivate user: %w", err)
			}
			return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionDisable, model.EntityUser, id,
				map[string]int64{"dependents": dependents})
		}

		if err := s.userRepo.Delete(txCtx, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, actor.UserID, model.ActionDelete, model.EntityUser, id, nil)
	})
	if err != nil {
		return false, err
	}
	return deactivated, nil
}

func (s *userService) Authenticate(ctx context.Context, ident *auth.Identity) (*auth.Principal, error) {
	user, err := s.userRepo.GetByAuthID(ctx, ident.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.linkByEmail(ctx, ident)
	}
	if err != nil {
		return nil, err
	}

	if user.Status != model.UserStatusActive {
		return nil, apperr.Forbidden("user account is inactive")
	}

	role := auth.RoleViewer
	if user.Role != nil {
		role = auth.ParseRole(user.Role.RoleName)
	}
	return &auth.Principal{
		UserID:   user.ID,
		AuthID:   ident.Subject,
		Email:    user.Email,
		Role:     role,
		Metadata: ident.Metadata,
	}, nil
}

// linkByEmail attaches a first-seen identity subject to the local account
// with the same email.
func (s *userService) linkByEmail(ctx context.Context, ident *auth.Identity) (*model.User, error) {
	if ident.Email == "" {
		return nil, apperr.Forbidden("no local account for this identity")
	}
	user, err := s.userRepo.GetByEmail(ctx, ident.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Forbidden("no local account for %s", ident.Email)
		}
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if user.AuthID != nil && *user.AuthID != ident.Subject {
		return nil, apperr.Forbidden("account is linked to a different identity")
	}

	now := time.Now().UTC()
	subject := ident.Subject
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.Updates(txCtx, user.ID, map[string]interface{}{"auth_id": subject, "last_login": now}); err != nil {
			return fmt.Errorf("failed to link identity: %w", err)
		}
		return logActivity(txCtx, s.activityRepo, user.ID, model.ActionLink, model.EntityUser, user.ID, nil)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("linked identity to local user", "user_id", user.ID)

	user.AuthID = &subject
	user.LastLogin = &now
	return user, nil
}

func toUserResponse(u model.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		AuthID:    u.AuthID,
		Username:  u.Username,
		Email:     u.Email,
		Status:    u.Status,
		LastLogin: u.LastLogin,
		CreatedOn: u.CreatedOn,
	}
	if u.Role != nil {
		resp.Role = u.Role.RoleName
	}
	return resp
}
