package model

import "time"

const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionUpload   = "UPLOAD"
	ActionApprove  = "APPROVE"
	ActionReject   = "REJECT"
	ActionDecide   = "DECIDE"
	ActionLink     = "LINK_IDENTITY"
	ActionDisable  = "DEACTIVATE"
	ActionRepair   = "RECONCILE"
	ActionSettings = "UPDATE_SETTING"
)

// Entity names used in activity rows besides the approvable ones
const (
	EntityUser     = "User"
	EntityApproval = "Approval"
	EntitySetting  = "Setting"
)

// ActivityLog records who changed what. Rows are written in the same
// transaction as the change.
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     *uint     `gorm:"index" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user,omitempty"`
	Action     string    `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string    `gorm:"type:varchar(30);not null;index" json:"entity_type"`
	EntityID   string    `gorm:"type:varchar(100);index" json:"entity_id"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	CreatedOn  time.Time `gorm:"autoCreateTime;index" json:"created_on"`
}
