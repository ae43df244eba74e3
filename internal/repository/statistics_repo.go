package repository

import (
	"context"
	"fmt"
	"time"

	"chemformula/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatisticsRepository interface {
	CountByColumn(ctx context.Context, table, column string, start, end time.Time) ([]model.GroupCount, error)
	CountPendingApprovals(ctx context.Context) (int64, error)
	SumQuotes(ctx context.Context, status string, start, end time.Time) (decimal.Decimal, error)
	TopChemicals(ctx context.Context, start, end time.Time, limit int) ([]model.ChemicalUsage, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

// grouped lists the (table, column, timestamp) triples CountByColumn accepts;
// identifiers never come from callers.
var grouped = map[string]map[string]string{
	"formulas":  {"status": "created_on"},
	"quotes":    {"status": "created_on"},
	"resources": {"category": "uploaded_on", "approval_status": "uploaded_on"},
}

func (r *statisticsRepository) CountByColumn(ctx context.Context, table, column string, start, end time.Time) ([]model.GroupCount, error) {
	tsColumn, ok := grouped[table][column]
	if !ok {
		return nil, fmt.Errorf("unsupported grouping %s.%s", table, column)
	}
	var rows []model.GroupCount
	err := GetDB(ctx, r.db).Table(table).
		Select(column+" AS name, COUNT(*) AS count").
		Where(tsColumn+" >= ? AND "+tsColumn+" <= ?", start, end).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count %s by %s: %w", table, column, err)
	}
	return rows, nil
}

func (r *statisticsRepository) CountPendingApprovals(ctx context.Context) (int64, error) {
	var n int64
	err := GetDB(ctx, r.db).Model(&model.Approval{}).Where("decision = ?", model.DecisionPending).Count(&n).Error
	return n, err
}

func (r *statisticsRepository) SumQuotes(ctx context.Context, status string, start, end time.Time) (decimal.Decimal, error) {
	var result struct {
		Value decimal.NullDecimal
	}
	err := GetDB(ctx, r.db).Model(&model.Quote{}).
		Select("SUM(total_amount) AS value").
		Where("status = ? AND created_on >= ? AND created_on <= ?", status, start, end).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum quotes: %w", err)
	}
	if !result.Value.Valid {
		return decimal.Zero, nil
	}
	return result.Value.Decimal, nil
}

func (r *statisticsRepository) TopChemicals(ctx context.Context, start, end time.Time, limit int) ([]model.ChemicalUsage, error) {
	var rankings []model.ChemicalUsage
	if err := GetDB(ctx, r.db).Table("formula_components").
		Select("formula_components.chemical_name AS chemical_name, COUNT(DISTINCT formula_components.formula_id) AS formula_count, AVG(formula_components.percentage) AS avg_percentage").
		Joins("JOIN formulas ON formulas.id = formula_components.formula_id").
		Where("formulas.created_on >= ? AND formulas.created_on <= ?", start, end).
		Group("formula_components.chemical_name").
		Order("formula_count DESC, chemical_name ASC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top chemicals: %w", err)
	}
	return rankings, nil
}
