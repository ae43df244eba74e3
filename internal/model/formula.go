package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Formula and quote statuses
const (
	StatusDraft    = "Draft"
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// Formula is the aggregate root owning its components.
type Formula struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	FormulaName   string             `gorm:"type:varchar(255);not null;index" json:"formula_name"`
	CreatedBy     uint               `gorm:"not null;index" json:"created_by"`
	Creator       *User              `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Density       float64            `json:"density"`
	TotalCost     decimal.Decimal    `gorm:"type:decimal(14,4);not null;default:0" json:"total_cost"`
	Margin        decimal.Decimal    `gorm:"type:decimal(14,4);not null;default:0" json:"margin"`
	ContainerCost decimal.Decimal    `gorm:"type:decimal(14,4);not null;default:0" json:"container_cost"`
	Status        string             `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	ApprovedBy    *uint              `json:"approved_by"`
	Approver      *User              `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedOn    *time.Time         `json:"approved_on"`
	CreatedOn     time.Time          `gorm:"autoCreateTime" json:"created_on"`
	UpdatedOn     *time.Time         `json:"updated_on"`
	Components    []FormulaComponent `gorm:"foreignKey:FormulaID;constraint:OnDelete:CASCADE" json:"components"`
}

type FormulaComponent struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	FormulaID    uint            `gorm:"not null;index" json:"formula_id"`
	ChemicalName string          `gorm:"type:varchar(255);not null" json:"chemical_name"`
	Percentage   float64         `json:"percentage"`
	CostPerLb    decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"cost_per_lb"`
	HazardClass  string          `gorm:"type:varchar(100)" json:"hazard_class"`
}
