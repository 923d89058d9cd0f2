// internal/models/order.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Order struct {
	BaseModel
	OrderNumber string      `json:"order_number" gorm:"size:50;uniqueIndex;not null"`
	UserID      uuid.UUID   `json:"user_id" gorm:"type:uuid;not null;index"`
	Status      OrderStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Total       float64     `json:"total" gorm:"type:decimal(10,2)"`
	PaidAt      *time.Time  `json:"paid_at"`

	// Relationships
	User  User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
}

type OrderItem struct {
	BaseModel
	OrderID           uuid.UUID  `json:"order_id" gorm:"type:uuid;not null;index"`
	BookID            *uuid.UUID `json:"book_id" gorm:"type:uuid;index"`
	ProductName       string     `json:"product_name" gorm:"size:255"`
	IsDigital         bool       `json:"is_digital" gorm:"not null;index"`
	Price             float64    `json:"price" gorm:"type:decimal(10,2);not null"`
	Quantity          int        `json:"quantity" gorm:"not null;default:1"`
	MaxDownloads      int        `json:"max_downloads" gorm:"not null;default:5"`
	DownloadCount     int        `json:"download_count" gorm:"not null;default:0"`
	DownloadExpiresAt *time.Time `json:"download_expires_at"`

	// Relationships
	Order     *Order            `json:"order,omitempty" gorm:"foreignKey:OrderID"`
	Book      *Book             `json:"book,omitempty" gorm:"foreignKey:BookID"`
	Downloads []DigitalDownload `json:"downloads,omitempty" gorm:"foreignKey:OrderItemID"`
}

// RemainingDownloads never goes below zero, even if the counter was bumped
// past the limit by hand.
func (i *OrderItem) RemainingDownloads() int {
	if remaining := i.MaxDownloads - i.DownloadCount; remaining > 0 {
		return remaining
	}
	return 0
}
