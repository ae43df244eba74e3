package model

import "time"

// Setting is a key/value application setting.
type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(100)" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedBy *uint     `json:"updated_by"`
	UpdatedOn time.Time `gorm:"autoUpdateTime" json:"updated_on"`
}
