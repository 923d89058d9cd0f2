// internal/handlers/webhook.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/javajoker/bookshop-backend/internal/i18n"
	"github.com/javajoker/bookshop-backend/internal/services"
	"github.com/javajoker/bookshop-backend/internal/utils"
)

const (
	checkoutSessionCompleted = "checkout.session.completed"
	maxWebhookBodyBytes      = 64 << 10
)

// WebhookHandler turns completed Stripe checkouts into paid orders with
// download links.
type WebhookHandler struct {
	orderService       *services.OrderService
	entitlementService *services.EntitlementService
	webhookSecret      string
	logger             *logrus.Entry
}

func NewWebhookHandler(orderService *services.OrderService, entitlementService *services.EntitlementService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{
		orderService:       orderService,
		entitlementService: entitlementService,
		webhookSecret:      webhookSecret,
		logger:             logrus.WithField("component", "stripe_webhook"),
	}
}

// POST /api/webhooks/stripe
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	// An empty secret would make any self-signed payload verify.
	if h.webhookSecret == "" {
		h.logger.Error("Stripe webhook received but no signing secret is configured")
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "WEBHOOK_DISABLED", i18n.T(lang, i18n.KeyWebhookNotConfigured), nil)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret,
		webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.WithError(err).Warn("Rejected webhook with invalid signature")
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_SIGNATURE", i18n.T(lang, i18n.KeyWebhookInvalidSignature), nil)
		return
	}

	log := h.logger.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})
	if string(event.Type) != checkoutSessionCompleted {
		log.Debug("Ignoring webhook event")
		utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyWebhookIgnored)})
		return
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		utils.BadRequestResponse(c, "", err.Error())
		return
	}

	orderID, err := uuid.Parse(session.Metadata["order_id"])
	if err != nil {
		// Checkouts not created by the shop carry no order id; acknowledge them.
		log.WithField("session_id", session.ID).Warn("Checkout session has no order id")
		utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyWebhookIgnored)})
		return
	}
	log = log.WithField("order_id", orderID)

	if _, err := h.orderService.MarkPaid(c.Request.Context(), orderID); err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			utils.NotFoundResponse(c, i18n.KeyOrderNotFound)
		case errors.Is(err, services.ErrOrderNotPayable):
			log.WithError(err).Warn("Checkout completed for an order that cannot be paid")
			utils.SuccessResponse(c, gin.H{"message": i18n.T(lang, i18n.KeyWebhookIgnored)})
		default:
			log.WithError(err).Error("Failed to mark order paid")
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	result, err := h.entitlementService.CreateLinksIfAbsent(c.Request.Context(), orderID, nil)
	if err != nil {
		// Stripe retries non-2xx responses; the backfill job is the second net.
		log.WithError(err).Error("Failed to issue download links")
		utils.InternalErrorResponse(c, "")
		return
	}

	log.WithField("links", len(result.Links)).Info("Checkout fulfilled")
	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyWebhookProcessed),
		"result":  result,
	})
}
