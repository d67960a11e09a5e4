package model

import (
	"time"
)

// Drawing maps a product code to a stored PDF file. Each drawing lives in
// exactly one tenant schema; product codes are unique within a tenant but
// may repeat across tenants.
type Drawing struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	ProductCode string    `json:"product_code" gorm:"type:varchar(100);uniqueIndex;not null"`
	PDFPath     string    `json:"pdf_path" gorm:"type:varchar(500);not null"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
