// internal/models/download.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// DigitalDownload is an issued download ticket for one digital file of one
// order item.
type DigitalDownload struct {
	BaseModel
	OrderItemID   uuid.UUID  `json:"order_item_id" gorm:"type:uuid;not null;index"`
	UserID        uuid.UUID  `json:"user_id" gorm:"type:uuid;not null;index"`
	DigitalFileID uuid.UUID  `json:"digital_file_id" gorm:"type:uuid;not null;index"`
	DownloadToken string     `json:"-" gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt     time.Time  `json:"expires_at" gorm:"not null;index"`
	DownloadedAt  *time.Time `json:"downloaded_at"`

	// Relationships
	OrderItem   *OrderItem   `json:"order_item,omitempty" gorm:"foreignKey:OrderItemID"`
	DigitalFile *DigitalFile `json:"digital_file,omitempty" gorm:"foreignKey:DigitalFileID"`
	User        *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (d *DigitalDownload) IsExpired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}
