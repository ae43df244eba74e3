package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chemformula/internal/model"
	"chemformula/pkg/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuoteFilter struct {
	Status    string
	CreatedBy uint
	FormulaID uint
	Search    string
}

type QuoteRepository interface {
	Create(ctx context.Context, quote *model.Quote) error
	CreateItems(ctx context.Context, items []model.QuoteItem) error
	FindByID(ctx context.Context, id uint) (*model.Quote, error)
	FindByIDWithRelations(ctx context.Context, id uint) (*model.Quote, error)
	List(ctx context.Context, filter QuoteFilter, p pagination.Params) ([]model.Quote, int64, error)
	Updates(ctx context.Context, id uint, fields map[string]interface{}) error
	SetDecision(ctx context.Context, id uint, status string, approverID uint, at time.Time) (int64, error)
	Delete(ctx context.Context, id uint) error
	DeleteItems(ctx context.Context, quoteID uint) error
	DetachFormula(ctx context.Context, formulaID uint) error
	NextNumber(ctx context.Context, day time.Time) (string, error)
}

type quoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

func (r *quoteRepository) Create(ctx context.Context, quote *model.Quote) error {
	return GetDB(ctx, r.db).Omit(clause.Associations).Create(quote).Error
}

func (r *quoteRepository) CreateItems(ctx context.Context, items []model.QuoteItem) error {
	if len(items) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&items).Error
}

func (r *quoteRepository) FindByID(ctx context.Context, id uint) (*model.Quote, error) {
	var quote model.Quote
	if err := GetDB(ctx, r.db).First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) FindByIDWithRelations(ctx context.Context, id uint) (*model.Quote, error) {
	var quote model.Quote
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Creator").
		Preload("Approver").
		First(&quote, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *quoteRepository) List(ctx context.Context, filter QuoteFilter, p pagination.Params) ([]model.Quote, int64, error) {
	var quotes []model.Quote
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Quote{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CreatedBy != 0 {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.FormulaID != 0 {
		query = query.Where("formula_id = ?", filter.FormulaID)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(customer_name) LIKE ? OR LOWER(quote_number) LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Creator").
		Preload("Approver").
		Order(p.OrderBy()).
		Offset(p.Offset).Limit(p.Limit).
		Find(&quotes).Error; err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

func (r *quoteRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := GetDB(ctx, r.db).Model(&model.Quote{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *quoteRepository) SetDecision(ctx context.Context, id uint, status string, approverID uint, at time.Time) (int64, error) {
	res := GetDB(ctx, r.db).Model(&model.Quote{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":      status,
		"approved_by": approverID,
		"approved_on": at,
		"updated_on":  at,
	})
	return res.RowsAffected, res.Error
}

func (r *quoteRepository) Delete(ctx context.Context, id uint) error {
	res := GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Quote{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *quoteRepository) DeleteItems(ctx context.Context, quoteID uint) error {
	return GetDB(ctx, r.db).Where("quote_id = ?", quoteID).Delete(&model.QuoteItem{}).Error
}

// DetachFormula clears formula_id on quotes priced from a formula being deleted.
func (r *quoteRepository) DetachFormula(ctx context.Context, formulaID uint) error {
	return GetDB(ctx, r.db).Model(&model.Quote{}).Where("formula_id = ?", formulaID).Update("formula_id", nil).Error
}

// NextNumber allocates the next Q-YYYYMMDD-NNNNN number for the day. Call it
// inside the create transaction; on postgres it takes a transaction-scoped
// advisory lock so concurrent creates do not collide.
func (r *quoteRepository) NextNumber(ctx context.Context, day time.Time) (string, error) {
	db := GetDB(ctx, r.db)
	prefix := "Q-" + day.Format("20060102") + "-"

	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", prefix).Error; err != nil {
			return "", err
		}
	}

	var latest []string
	err := db.Model(&model.Quote{}).
		Where("quote_number LIKE ?", prefix+"%").
		Order("quote_number DESC").
		Limit(1).
		Pluck("quote_number", &latest).Error
	if err != nil {
		return "", err
	}

	next := 1
	if len(latest) > 0 {
		if n, err := strconv.Atoi(strings.TrimPrefix(latest[0], prefix)); err == nil {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%05d", prefix, next), nil
}
