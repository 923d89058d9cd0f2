// internal/services/order_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/bookshop-backend/internal/models"
)

type OrderService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOrderService(db *gorm.DB) *OrderService {
	return &OrderService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// MarkPaid moves a pending order to paid. Orders that are already paid or
// further along are returned unchanged so repeated webhooks are harmless.
func (s *OrderService) MarkPaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}

		switch order.Status {
		case models.OrderStatusPending:
		case models.OrderStatusCancelled, models.OrderStatusRefunded:
			return ErrOrderNotPayable
		default:
			return nil
		}

		paidAt := s.now()
		if err := tx.Model(&order).Updates(map[string]interface{}{
			"status":  models.OrderStatusPaid,
			"paid_at": paidAt,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		order.Status = models.OrderStatusPaid
		order.PaidAt = &paidAt

		logrus.WithFields(logrus.Fields{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		}).Info("Order marked as paid")
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &order, nil
}
