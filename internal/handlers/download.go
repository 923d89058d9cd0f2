// internal/handlers/download.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/bookshop-backend/internal/i18n"
	"github.com/javajoker/bookshop-backend/internal/models"
	"github.com/javajoker/bookshop-backend/internal/services"
	"github.com/javajoker/bookshop-backend/internal/utils"
)

type DownloadHandler struct {
	entitlementService *services.EntitlementService
}

func NewDownloadHandler(entitlementService *services.EntitlementService) *DownloadHandler {
	return &DownloadHandler{
		entitlementService: entitlementService,
	}
}

// IssueEntitlementsRequest keys preferences by order item id.
type IssueEntitlementsRequest struct {
	LanguagePreferences map[string]string `json:"language_preferences" validate:"omitempty,dive,keys,uuid,endkeys,language_code"`
}

func (r *IssueEntitlementsRequest) preferences() services.LanguagePreferences {
	if len(r.LanguagePreferences) == 0 {
		return nil
	}
	prefs := make(services.LanguagePreferences, len(r.LanguagePreferences))
	for itemID, lang := range r.LanguagePreferences {
		// keys are validated as UUIDs before this is called
		prefs[uuid.MustParse(itemID)] = lang
	}
	return prefs
}

// GET /api/download/:token
func (h *DownloadHandler) ServeDownload(c *gin.Context) {
	served, err := h.entitlementService.ServeDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Redirect(http.StatusFound, served.URL)
}

// GET /api/orders/:id/downloads
func (h *DownloadHandler) GetOrderDownloads(c *gin.Context) {
	orderID, ok := parseIDParam(c, "order")
	if !ok {
		return
	}

	userIDStr, exists := utils.GetUserIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		utils.UnauthorizedResponse(c, i18n.KeyAuthInvalidToken)
		return
	}

	owned, err := h.entitlementService.OrderBelongsTo(c.Request.Context(), orderID, userID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	if role, _ := utils.GetUserRoleFromContext(c); !owned && role != string(models.UserRoleAdmin) {
		utils.ForbiddenResponse(c, i18n.KeyOrderAccessDenied)
		return
	}

	statuses, err := h.entitlementService.GetDownloadStatus(c.Request.Context(), orderID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"order_id":  orderID,
		"downloads": statuses,
	})
}

// POST /api/admin/orders/:id/entitlements
func (h *DownloadHandler) IssueEntitlements(c *gin.Context) {
	orderID, ok := parseIDParam(c, "order")
	if !ok {
		return
	}

	var req IssueEntitlementsRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.BadRequestResponse(c, "", err.Error())
			return
		}
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	result, err := h.entitlementService.CreateLinksIfAbsent(c.Request.Context(), orderID, req.preferences())
	if err != nil {
		h.handleError(c, err)
		return
	}

	lang := utils.GetLangFromContext(c)
	var message string
	switch {
	case result.Skipped:
		message = i18n.T(lang, i18n.KeyDownloadLinksExist)
	case len(result.Links) == 0:
		message = i18n.T(lang, i18n.KeyDownloadNoDigitalItems)
	default:
		message = i18n.T(lang, i18n.KeyDownloadLinksIssued)
	}

	if result.Skipped || len(result.Links) == 0 {
		utils.SuccessResponse(c, gin.H{"message": message, "result": result})
		return
	}
	utils.CreatedResponse(c, gin.H{"message": message, "result": result})
}

// POST /api/admin/orders/:id/downloads/resend
func (h *DownloadHandler) ResendDeliveryEmail(c *gin.Context) {
	orderID, ok := parseIDParam(c, "order")
	if !ok {
		return
	}

	sent, err := h.entitlementService.ResendDeliveryEmail(c.Request.Context(), orderID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyDownloadEmailResent),
		"links":   sent,
	})
}

// POST /api/admin/downloads/:id/regenerate
func (h *DownloadHandler) RegenerateToken(c *gin.Context) {
	downloadID, ok := parseIDParam(c, "download")
	if !ok {
		return
	}

	link, err := h.entitlementService.RegenerateToken(c.Request.Context(), downloadID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyDownloadRegenerated),
		"link":    link,
	})
}

// POST /api/admin/entitlements/backfill
func (h *DownloadHandler) Backfill(c *gin.Context) {
	report, err := h.entitlementService.BackfillMissingEntitlements(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyBackfillCompleted),
		"report":  report,
	})
}

func (h *DownloadHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidToken):
		utils.NotFoundResponse(c, i18n.KeyDownloadInvalidToken)
	case errors.Is(err, services.ErrDownloadExpired):
		utils.GoneResponse(c, i18n.KeyDownloadExpired)
	case errors.Is(err, services.ErrDownloadLimitReached):
		utils.ForbiddenResponse(c, i18n.KeyDownloadLimitReached)
	case errors.Is(err, services.ErrOrderNotFound):
		utils.NotFoundResponse(c, i18n.KeyOrderNotFound)
	case errors.Is(err, services.ErrDownloadNotFound):
		utils.NotFoundResponse(c, i18n.KeyDownloadNotFound)
	case errors.Is(err, services.ErrNoActiveDownloads):
		utils.NotFoundResponse(c, i18n.KeyDownloadNotFound)
	default:
		logrus.WithError(err).WithField("route", c.FullPath()).Error("Download request failed")
		utils.InternalErrorResponse(c, "")
	}
}

func parseIDParam(c *gin.Context, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(utils.GetLangFromContext(c), i18n.KeyInvalidIdentifier, resource), nil)
		return uuid.Nil, false
	}
	return id, true
}
