package repository

import (
	"context"
	"time"

	"chemformula/internal/model"
	"chemformula/pkg/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApprovalFilter struct {
	EntityType string
	EntityID   uint
	Decision   string
	ApproverID uint
}

// EntityCount is one row of the pending-by-type breakdown.
type EntityCount struct {
	EntityType string `json:"entity_type"`
	Count      int64  `json:"count"`
}

type ApprovalRepository interface {
	Create(ctx context.Context, approval *model.Approval) error
	FindByID(ctx context.Context, id uint) (*model.Approval, error)
	FindByIDWithRelations(ctx context.Context, id uint) (*model.Approval, error)
	FindPending(ctx context.Context, entityType string, entityID uint) (*model.Approval, error)
	List(ctx context.Context, filter ApprovalFilter, p pagination.Params) ([]model.Approval, int64, error)
	Updates(ctx context.Context, id uint, fields map[string]interface{}) error
	DecidePending(ctx context.Context, entityType string, entityID uint, decision string, approverID uint, at time.Time, comments *string) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteForEntity(ctx context.Context, entityType string, entityID uint) error
	CountPendingByEntity(ctx context.Context) ([]EntityCount, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, approval *model.Approval) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(approval).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uint) (*model.Approval, error) {
	var a model.Approval
	if err := GetDB(ctx, r.db).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *approvalRepository) FindByIDWithRelations(ctx context.Context, id uint) (*model.Approval, error) {
	var a model.Approval
	if err := GetDB(ctx, r.db).Preload("Approver").First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *approvalRepository) FindPending(ctx context.Context, entityType string, entityID uint) (*model.Approval, error) {
	var a model.Approval
	if err := GetDB(ctx, r.db).
		Where("entity_type = ? AND entity_id = ? AND decision = ?", entityType, entityID, model.DecisionPending).
		First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *approvalRepository) List(ctx context.Context, filter ApprovalFilter, p pagination.Params) ([]model.Approval, int64, error) {
	var approvals []model.Approval
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Approval{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}
	if filter.Decision != "" {
		query = query.Where("decision = ?", filter.Decision)
	}
	if filter.ApproverID != 0 {
		query = query.Where("approver_id = ?", filter.ApproverID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Preload("Approver").Order(p.OrderBy()).Offset(p.Offset).Limit(p.Limit).Find(&approvals).Error; err != nil {
		return nil, 0, err
	}
	return approvals, total, nil
}

func (r *approvalRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&model.Approval{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DecidePending flips the entity's Pending row, if any, to decision. It
// returns the number of rows matched; zero is not an error.
func (r *approvalRepository) DecidePending(ctx context.Context, entityType string, entityID uint, decision string, approverID uint, at time.Time, comments *string) (int64, error) {
	fields := map[string]interface{}{
		"decision":      decision,
		"approver_id":   approverID,
		"decision_date": at,
	}
	if comments != nil {
		fields["comments"] = *comments
	}
	res := GetDB(ctx, r.db).Model(&model.Approval{}).
		Where("entity_type = ? AND entity_id = ? AND decision = ?", entityType, entityID, model.DecisionPending).
		Updates(fields)
	return res.RowsAffected, res.Error
}

func (r *approvalRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Approval{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *approvalRepository) DeleteForEntity(ctx context.Context, entityType string, entityID uint) error {
	return GetDB(ctx, r.db).Where("entity_type = ? AND entity_id = ?", entityType, entityID).Delete(&model.Approval{}).Error
}

func (r *approvalRepository) CountPendingByEntity(ctx context.Context) ([]EntityCount, error) {
	var rows []EntityCount
	err := GetDB(ctx, r.db).Model(&model.Approval{}).
		Select("entity_type, COUNT(*) AS count").
		Where("decision = ?", model.DecisionPending).
		Group("entity_type").
		Order("entity_type ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
