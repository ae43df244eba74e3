package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a customer price quote, optionally for a formula, owning its line
// items.
type Quote struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	QuoteNumber   string          `gorm:"type:varchar(30);uniqueIndex;not null" json:"quote_number"`
	FormulaID     *uint           `gorm:"index" json:"formula_id"`
	Formula       *Formula        `gorm:"foreignKey:FormulaID;constraint:OnDelete:SET NULL" json:"formula,omitempty"`
	CustomerName  string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail string          `gorm:"type:varchar(255)" json:"customer_email"`
	CreatedBy     uint            `gorm:"not null;index" json:"created_by"`
	Creator       *User           `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Status        string          `gorm:"type:varchar(20);not null;default:'Pending';index" json:"status"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0" json:"total_amount"`
	ValidUntil    *time.Time      `json:"valid_until"`
	Notes         string          `gorm:"type:text" json:"notes"`
	ApprovedBy    *uint           `json:"approved_by"`
	Approver      *User           `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedOn    *time.Time      `json:"approved_on"`
	CreatedOn     time.Time       `gorm:"autoCreateTime" json:"created_on"`
	UpdatedOn     *time.Time      `json:"updated_on"`
	Items         []QuoteItem     `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items"`
}

type QuoteItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	QuoteID     uint            `gorm:"not null;index" json:"quote_id"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"line_total"`
}
