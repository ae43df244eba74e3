package model

import "time"

// Approvable entity types
const (
	EntityFormula  = "Formula"
	EntityQuote    = "Quote"
	EntityResource = "Resource"
)

// Approval decisions. Returned is a legal value that no workflow produces.
const (
	DecisionPending  = "Pending"
	DecisionApproved = "Approved"
	DecisionRejected = "Rejected"
	DecisionReturned = "Returned"
)

var EntityTypes = []string{EntityFormula, EntityQuote, EntityResource}

var Decisions = []string{DecisionPending, DecisionApproved, DecisionRejected, DecisionReturned}

// Approval is the pending-record ledger for an entity. At most one row per
// entity carries decision=Pending; the row is updated in place when decided.
type Approval struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EntityType   string    `gorm:"type:varchar(20);not null;index:idx_approvals_entity" json:"entity_type"`
	EntityID     uint      `gorm:"not null;index:idx_approvals_entity" json:"entity_id"`
	ApproverID   uint      `gorm:"not null;index" json:"approver_id"`
	Approver     *User     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Decision     string    `gorm:"type:varchar(20);not null;default:'Pending';index" json:"decision"`
	DecisionDate time.Time `json:"decision_date"`
	Comments     *string   `gorm:"type:text" json:"comments,omitempty"`
}

func IsEntityType(s string) bool {
	for _, e := range EntityTypes {
		if e == s {
			return true
		}
	}
	return false
}

func IsDecision(s string) bool {
	for _, d := range Decisions {
		if d == s {
			return true
		}
	}
	return false
}
