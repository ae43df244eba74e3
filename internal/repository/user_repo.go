package repository

import (
	"context"
	"strings"

	"chemformula/internal/model"
	"chemformula/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserFilter struct {
	Status string
	RoleID uint
	Search string
}

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uint) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByAuthID(ctx context.Context, authID uuid.UUID) (*model.User, error)
	List(ctx context.Context, filter UserFilter, p pagination.Params) ([]model.User, int64, error)
	Updates(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	CountDependents(ctx context.Context, id uint) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) first(ctx context.Context, query string, args ...interface{}) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Role").Where(query, args...).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.first(ctx, "LOWER(email) = ?", strings.ToLower(email))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *userRepository) GetByAuthID(ctx context.Context, authID uuid.UUID) (*model.User, error) {
	return r.first(ctx, "auth_id = ?", authID)
}

func (r *userRepository) List(ctx context.Context, filter UserFilter, p pagination.Params) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := GetDB(ctx, r.db).Model(&model.User{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.RoleID != 0 {
		query = query.Where("role_id = ?", filter.RoleID)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Role").Order(p.OrderBy()).Offset(p.Offset).Limit(p.Limit).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.User{}).Error
}

// CountDependents counts rows that reference the user and would block a hard
// delete.
func (r *userRepository) CountDependents(ctx context.Context, id uint) (int64, error) {
	db := GetDB(ctx, r.db)
	var total int64
	checks := []struct {
		model  interface{}
		clause string
	}{
		{&model.Formula{}, "created_by = @id OR approved_by = @id"},
		{&model.Quote{}, "created_by = @id OR approved_by = @id"},
		{&model.Resource{}, "uploaded_by = @id OR approved_by = @id"},
		{&model.Approval{}, "approver_id = @id"},
	}
	for _, c := range checks {
		var n int64
		if err := db.Model(c.model).Where(c.clause, map[string]interface{}{"id": id}).Count(&n).Error; err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
