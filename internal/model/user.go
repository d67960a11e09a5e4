package model

import (
	"time"
)

// User represents an account in the shared identity store. Users are not
// tenant-scoped; usernames are unique across all tenants.
type User struct {
	ID             uint       `json:"id" gorm:"primaryKey"`
	Username       string     `json:"username" gorm:"type:varchar(50);uniqueIndex;not null"`
	PasswordHash   string     `json:"-" gorm:"type:varchar(255);not null"`
	Email          string     `json:"email" gorm:"type:varchar(100)"`
	ActivationCode string     `json:"activation_code" gorm:"type:varchar(50);index;not null"`
	TenantKey      string     `json:"tenant_key" gorm:"type:varchar(64)"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	IsActive       bool       `json:"is_active" gorm:"default:true"`
}
