package model

import (
	"time"
)

// ActivationCode is an operator-issued credential that both gates
// registration and determines tenant assignment. Codes are never
// hard-deleted; users and drawings reference them.
type ActivationCode struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Code        string    `json:"code" gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string    `json:"description" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`
	IsActive    bool      `json:"is_active" gorm:"default:true"`
}
