package repository

import (
	"context"
	"strings"
	"time"

	"chemformula/internal/model"
	"chemformula/pkg/filemeta"
	"chemformula/pkg/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResourceFilter struct {
	Category       string
	ApprovalStatus string
	UploadedBy     uint
	Search         string
}

type ResourceRepository interface {
	Create(ctx context.Context, resource *model.Resource) error
	FindByID(ctx context.Context, id uint) (*model.Resource, error)
	FindByIDWithRelations(ctx context.Context, id uint) (*model.Resource, error)
	FindByStoredName(ctx context.Context, name string) (*model.Resource, error)
	List(ctx context.Context, filter ResourceFilter, p pagination.Params) ([]model.Resource, int64, error)
	All(ctx context.Context) ([]model.Resource, error)
	Updates(ctx context.Context, id uint, fields map[string]interface{}) error
	SetDecision(ctx context.Context, id uint, status string, approverID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id uint) error
}

type resourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) Create(ctx context.Context, resource *model.Resource) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(resource).Error
}

func (r *resourceRepository) FindByID(ctx context.Context, id uint) (*model.Resource, error) {
	var res model.Resource
	if err := GetDB(ctx, r.db).First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *resourceRepository) FindByIDWithRelations(ctx context.Context, id uint) (*model.Resource, error) {
	var res model.Resource
	if err := GetDB(ctx, r.db).Preload("Uploader").Preload("Approver").First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// FindByStoredName returns the resource whose file_url points at name in any
// bucket.
func (r *resourceRepository) FindByStoredName(ctx context.Context, name string) (*model.Resource, error) {
	urls := make([]string, 0, len(filemeta.Categories))
	for _, c := range filemeta.Categories {
		urls = append(urls, filemeta.URLFor(c, name))
	}
	var res model.Resource
	if err := GetDB(ctx, r.db).Where("file_url IN ?", urls).Order("id ASC").First(&res).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *resourceRepository) List(ctx context.Context, filter ResourceFilter, p pagination.Params) ([]model.Resource, int64, error) {
	var resources []model.Resource
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Resource{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.ApprovalStatus != "" {
		query = query.Where("approval_status = ?", filter.ApprovalStatus)
	}
	if filter.UploadedBy != 0 {
		query = query.Where("uploaded_by = ?", filter.UploadedBy)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(file_name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Uploader").Preload("Approver").
		Order(p.OrderBy()).
		Offset(p.Offset).Limit(p.Limit).
		Find(&resources).Error; err != nil {
		return nil, 0, err
	}
	return resources, total, nil
}

func (r *resourceRepository) All(ctx context.Context) ([]model.Resource, error) {
	var resources []model.Resource
	if err := GetDB(ctx, r.db).Order("id ASC").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *resourceRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&model.Resource{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetDecision overwrites approval_status by id regardless of the current one.
func (r *resourceRepository) SetDecision(ctx context.Context, id uint, status string, approverID uint, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Resource{}).Where("id = ?", id).Updates(map[string]interface{}{
		"approval_status": status,
		"approved_by":     approverID,
		"approved_on":     at,
	})
	return res.RowsAffected, res.Error
}

func (r *resourceRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Resource{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
