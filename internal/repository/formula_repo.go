package repository

import (
	"context"
	"strings"
	"time"

	"chemformula/internal/model"
	"chemformula/pkg/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FormulaFilter struct {
	Status    string
	CreatedBy uint
	Search    string
}

type FormulaRepository interface {
	Create(ctx context.Context, formula *model.Formula) error
	CreateComponents(ctx context.Context, components []model.FormulaComponent) error
	FindByID(ctx context.Context, id uint) (*model.Formula, error)
	FindByIDWithRelations(ctx context.Context, id uint) (*model.Formula, error)
	List(ctx context.Context, filter FormulaFilter, p pagination.Params) ([]model.Formula, int64, error)
	Updates(ctx context.Context, id uint, fields map[string]interface{}) error
	SetDecision(ctx context.Context, id uint, status string, approverID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id uint) error

	ListComponents(ctx context.Context, formulaID uint) ([]model.FormulaComponent, error)
	FindComponent(ctx context.Context, formulaID, componentID uint) (*model.FormulaComponent, error)
	UpdateComponent(ctx context.Context, component *model.FormulaComponent) error
	DeleteComponent(ctx context.Context, formulaID, componentID uint) error
	DeleteComponents(ctx context.Context, formulaID uint) error
}

type formulaRepository struct {
	db *gorm.DB
}

func NewFormulaRepository(db *gorm.DB) FormulaRepository {
	return &formulaRepository{db: db}
}

// Create inserts the formula row only; components go through CreateComponents.
func (r *formulaRepository) Create(ctx context.Context, formula *model.Formula) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(formula).Error
}

func (r *formulaRepository) CreateComponents(ctx context.Context, components []model.FormulaComponent) error {
	if len(components) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&components).Error
}

func (r *formulaRepository) FindByID(ctx context.Context, id uint) (*model.Formula, error) {
	var formula model.Formula
	if err := GetDB(ctx, r.db).First(&formula, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &formula, nil
}

func (r *formulaRepository) FindByIDWithRelations(ctx context.Context, id uint) (*model.Formula, error) {
	var formula model.Formula
	if err := GetDB(ctx, r.db).
		Preload("Components", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Creator").
		Preload("Approver").
		First(&formula, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &formula, nil
}

func (r *formulaRepository) List(ctx context.Context, filter FormulaFilter, p pagination.Params) ([]model.Formula, int64, error) {
	var formulas []model.Formula
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Formula{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedBy != 0 {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.Search != "" {
		query = query.Where("LOWER(formula_name) LIKE ?", "%"+strings.ToLower(filter.Search)+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.
		Preload("Components", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Creator").
		Preload("Approver").
		Order(p.OrderBy()).
		Offset(p.Offset).Limit(p.Limit).
		Find(&formulas).Error; err != nil {
		return nil, 0, err
	}
	return formulas, total, nil
}

func (r *formulaRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&model.Formula{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetDecision writes the decided status by id regardless of the current one.
func (r *formulaRepository) SetDecision(ctx context.Context, id uint, status string, approverID uint, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Formula{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"approved_by": approverID,
		"approved_on": at,
		"updated_on":  at,
	})
	return res.RowsAffected, res.Error
}

func (r *formulaRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Formula{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *formulaRepository) ListComponents(ctx context.Context, formulaID uint) ([]model.FormulaComponent, error) {
	var components []model.FormulaComponent
	if err := GetDB(ctx, r.db).Where("formula_id = ?", formulaID).Order("id ASC").Find(&components).Error; err != nil {
		return nil, err
	}
	return components, nil
}

func (r *formulaRepository) FindComponent(ctx context.Context, formulaID, componentID uint) (*model.FormulaComponent, error) {
	var c model.FormulaComponent
	if err := GetDB(ctx, r.db).First(&c, "id = ? AND formula_id = ?", componentID, formulaID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *formulaRepository) UpdateComponent(ctx context.Context, component *model.FormulaComponent) error {
	return GetDB(ctx, r.db).Save(component).Error
}

func (r *formulaRepository) DeleteComponent(ctx context.Context, formulaID, componentID uint) error {
	res := GetDB(ctx, r.db).Where("id = ? AND formula_id = ?", componentID, formulaID).Delete(&model.FormulaComponent{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *formulaRepository) DeleteComponents(ctx context.Context, formulaID uint) error {
	return GetDB(ctx, r.db).Where("formula_id = ?", formulaID).Delete(&model.FormulaComponent{}).Error
}
