package service

import (
	"context"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/model"
	"chemformula/internal/repository"
	"chemformula/pkg/filemeta"
)

const topChemicalsLimit = 5

type StatisticsService interface {
	GetStatistics(ctx context.Context, startDate, endDate time.Time) (*model.StatisticsResponse, error)
}

type statisticsService struct {
	statsRepo repository.StatisticsRepository
}

func NewStatisticsService(statsRepo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{statsRepo: statsRepo}
}

// GetStatistics summarises formulas, quotes and resources created inside the
// range. Every known status and category is present, zero when unused.
func (s *statisticsService) GetStatistics(ctx context.Context, startDate, endDate time.Time) (*model.StatisticsResponse, error) {
	if endDate.Before(startDate) {
		return nil, apperr.Validation("end_date must not be before start_date")
	}
	resp := &model.StatisticsResponse{
		FormulasByStatus:    zeroCounts(model.StatusDraft, model.StatusPending, model.StatusApproved, model.StatusRejected),
		QuotesByStatus:      zeroCounts(model.StatusDraft, model.StatusPending, model.StatusApproved, model.StatusRejected),
		ResourcesByCategory: zeroCounts(filemeta.Categories...),
		TimeRangeStartDate:  startDate,
		TimeRangeEndDate:    endDate,
	}

	groups := []struct {
		table, column string
		into          map[string]int64
	}{
		{"formulas", "status", resp.FormulasByStatus},
		{"quotes", "status", resp.QuotesByStatus},
		{"resources", "category", resp.ResourcesByCategory},
	}
	for _, g := range groups {
		rows, err := s.statsRepo.CountByColumn(ctx, g.table, g.column, startDate, endDate)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			g.into[row.Name] = row.Count
		}
	}

	var err error
	if resp.PendingApprovals, err = s.statsRepo.CountPendingApprovals(ctx); err != nil {
		return nil, err
	}
	if resp.ApprovedQuoteValue, err = s.statsRepo.SumQuotes(ctx, model.StatusApproved, startDate, endDate); err != nil {
		return nil, err
	}
	if resp.TopChemicals, err = s.statsRepo.TopChemicals(ctx, startDate, endDate, topChemicalsLimit); err != nil {
		return nil, err
	}
	if resp.TopChemicals == nil {
		resp.TopChemicals = []model.ChemicalUsage{}
	}
	return resp, nil
}

func zeroCounts(keys ...string) map[string]int64 {
	m := make(map[string]int64, len(keys))
	for _, k := range keys {
		m[k] = 0
	}
	return m
}
