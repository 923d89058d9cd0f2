// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess           = "success"
	KeyError             = "error"
	KeyValidationInvalid = "validation.invalid"
	KeyRateLimitExceeded = "rate_limit.exceeded"
	KeyInternalError     = "internal.error"
	KeyInvalidIdentifier = "validation.invalid_id"

	// Authentication
	KeyAuthRequired      = "auth.required"
	KeyAuthInvalidToken  = "auth.invalid_token"
	KeyAuthTokenExpired  = "auth.token_expired"
	KeyAdminAccessDenied = "admin.access_denied"
	KeyOrderAccessDenied = "order.access_denied"

	// Orders
	KeyOrderNotFound = "order.not_found"

	// Downloads
	KeyDownloadNotFound       = "download.not_found"
	KeyDownloadInvalidToken   = "download.invalid_token"
	KeyDownloadExpired        = "download.expired"
	KeyDownloadLimitReached   = "download.limit_reached"
	KeyDownloadLinksIssued    = "download.links_issued"
	KeyDownloadLinksExist     = "download.links_exist"
	KeyDownloadNoDigitalItems = "download.no_digital_items"
	KeyDownloadRegenerated    = "download.regenerated"
	KeyDownloadEmailResent    = "download.email_resent"
	KeyBackfillCompleted      = "download.backfill_completed"

	// Webhooks
	KeyWebhookInvalidSignature = "webhook.invalid_signature"
	KeyWebhookIgnored          = "webhook.ignored"
	KeyWebhookProcessed        = "webhook.processed"
	KeyWebhookNotConfigured    = "webhook.not_configured"
)
