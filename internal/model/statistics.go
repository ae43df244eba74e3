package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatisticsResponse is the dashboard summary for a time range.
type StatisticsResponse struct {
	FormulasByStatus    map[string]int64 `json:"formulas_by_status"`
	QuotesByStatus      map[string]int64 `json:"quotes_by_status"`
	ResourcesByCategory map[string]int64 `json:"resources_by_category"`
	PendingApprovals    int64            `json:"pending_approvals"`
	ApprovedQuoteValue  decimal.Decimal  `json:"approved_quote_value"`
	TopChemicals        []ChemicalUsage  `json:"top_chemicals"`
	TimeRangeStartDate  time.Time        `json:"time_range_start_date"`
	TimeRangeEndDate    time.Time        `json:"time_range_end_date"`
}

// ChemicalUsage ranks a chemical by how many formulas use it.
type ChemicalUsage struct {
	ChemicalName  string  `json:"chemical_name"`
	FormulaCount  int64   `json:"formula_count"`
	AvgPercentage float64 `json:"avg_percentage"`
}

// GroupCount is one row of a GROUP BY count.
type GroupCount struct {
	Name  string
	Count int64
}
