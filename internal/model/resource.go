package model

import "time"

const (
	ApprovalStatusPending  = "Pending"
	ApprovalStatusApproved = "Approved"
	ApprovalStatusRejected = "Rejected"
)

// Resource is an uploaded file stored under uploads/<category>/.
type Resource struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	FileName       string     `gorm:"type:varchar(255);not null" json:"file_name"`
	FileType       string     `gorm:"type:varchar(50)" json:"file_type"`
	MimeType       string     `gorm:"type:varchar(150)" json:"mime_type"`
	FileSize       string     `gorm:"type:varchar(30)" json:"file_size"`
	FileURL        string     `gorm:"type:varchar(512);not null" json:"file_url"`
	Category       string     `gorm:"type:varchar(20);not null;default:'other';index" json:"category"`
	UploadedBy     uint       `gorm:"not null;index" json:"uploaded_by"`
	Uploader       *User      `gorm:"foreignKey:UploadedBy" json:"uploader,omitempty"`
	UploadedOn     time.Time  `gorm:"autoCreateTime" json:"uploaded_on"`
	Description    *string    `gorm:"type:text" json:"description,omitempty"`
	ApprovalStatus string     `gorm:"type:varchar(20);not null;default:'Pending';index" json:"approval_status"`
	ApprovedBy     *uint      `json:"approved_by"`
	Approver       *User      `gorm:"foreignKey:ApprovedBy" json:"approver,omitempty"`
	ApprovedOn     *time.Time `json:"approved_on"`
}
