// internal/services/entitlement_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/bookshop-backend/internal/config"
	"github.com/javajoker/bookshop-backend/internal/database"
	"github.com/javajoker/bookshop-backend/internal/metrics"
	"github.com/javajoker/bookshop-backend/internal/models"
	"github.com/javajoker/bookshop-backend/internal/utils"
)

const backfillBatchSize = 200

// EntitlementService issues, re-issues and redeems download tokens for the
// digital items of an order.
type EntitlementService struct {
	db       *gorm.DB
	cfg      config.DownloadConfig
	notifier DeliveryNotifier
	storage  FileURLSigner
	guard    IssuanceGuard
	tokens   utils.TokenGenerator
	now      func() time.Time
	logger   *logrus.Entry

	backfillBatch int
}

// LanguagePreferences maps an order item id to the language the buyer picked.
type LanguagePreferences map[uuid.UUID]string

type IssueResult struct {
	OrderID          uuid.UUID                `json:"order_id"`
	OrderNumber      string                   `json:"order_number,omitempty"`
	Skipped          bool                     `json:"skipped"`
	Links            []DownloadLink           `json:"links"`
	SkippedItems     []uuid.UUID              `json:"skipped_items,omitempty"`
	NotificationSent bool                     `json:"notification_sent"`
	Downloads        []models.DigitalDownload `json:"-"`
}

type DownloadStatus struct {
	DownloadID         uuid.UUID  `json:"download_id"`
	OrderItemID        uuid.UUID  `json:"order_item_id"`
	BookName           string     `json:"book_name"`
	FileName           string     `json:"file_name"`
	Format             string     `json:"format"`
	Language           string     `json:"language"`
	Downloaded         bool       `json:"downloaded"`
	DownloadedAt       *time.Time `json:"downloaded_at"`
	ExpiresAt          time.Time  `json:"expires_at"`
	Expired            bool       `json:"expired"`
	RemainingDownloads int        `json:"remaining_downloads"`
}

type RegeneratedLink struct {
	DownloadID  uuid.UUID `json:"download_id"`
	Token       string    `json:"token"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ServedFile struct {
	URL                string `json:"url"`
	FileName           string `json:"file_name"`
	Format             string `json:"format"`
	RemainingDownloads int    `json:"remaining_downloads"`
}

type BackfillReport struct {
	Scanned int `json:"scanned"`
	Issued  int `json:"issued"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

func NewEntitlementService(db *gorm.DB, cfg config.DownloadConfig, notifier DeliveryNotifier, storage FileURLSigner, guard IssuanceGuard) *EntitlementService {
	if guard == nil {
		guard = NoopIssuanceGuard{}
	}
	return &EntitlementService{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		storage:  storage,
		guard:    guard,
		tokens:   utils.NewDownloadTokenGenerator(),
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logrus.WithField("component", "entitlements"),

		backfillBatch: backfillBatchSize,
	}
}

// WithClock replaces the time source. Tests only.
func (s *EntitlementService) WithClock(now func() time.Time) *EntitlementService {
	s.now = now
	return s
}

func (s *EntitlementService) WithTokenGenerator(tokens utils.TokenGenerator) *EntitlementService {
	s.tokens = tokens
	return s
}

// DownloadURL is the public link for a token.
func DownloadURL(siteURL, token string) string {
	return strings.TrimRight(siteURL, "/") + "/api/download/" + token
}

// IssueEntitlements creates one download per active file of every digital
// item of the order. All database writes for the order commit together; the
// delivery email is sent afterwards and its failure does not undo issuance.
func (s *EntitlementService) IssueEntitlements(ctx context.Context, orderID uuid.UUID, prefs LanguagePreferences) (*IssueResult, error) {
	order, err := s.loadOrderForIssuance(ctx, orderID)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})

	result := &IssueResult{OrderID: order.ID, OrderNumber: order.OrderNumber, Links: []DownloadLink{}}
	if len(order.Items) == 0 {
		log.Info("Order has no digital items, nothing to issue")
		return result, nil
	}

	expiresAt := s.now().Add(s.cfg.EntitlementTTL)
	var deliveryItems []DeliveryItem

	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		for i := range order.Items {
			item := &order.Items[i]
			if item.Book == nil {
				log.WithField("order_item_id", item.ID).Warn("Digital item has no book, skipping")
				result.SkippedItems = append(result.SkippedItems, item.ID)
				continue
			}

			if err := tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).
				Update("download_expires_at", expiresAt).Error; err != nil {
				return fmt.Errorf("failed to set download expiry for item %s: %w", item.ID, err)
			}
			item.DownloadExpiresAt = &expiresAt

			files := selectFiles(item.Book.DigitalFiles, prefs[item.ID])
			if len(files) == 0 {
				log.WithField("book_id", item.Book.ID).Warn("Book has no active digital files")
			}

			for _, file := range files {
				token, err := s.tokens.Generate()
				if err != nil {
					return fmt.Errorf("failed to generate download token: %w", err)
				}

				download := models.DigitalDownload{
					OrderItemID:   item.ID,
					UserID:        order.UserID,
					DigitalFileID: file.ID,
					DownloadToken: token,
					ExpiresAt:     expiresAt,
				}
				if err := tx.Create(&download).Error; err != nil {
					return fmt.Errorf("failed to create download for item %s: %w", item.ID, err)
				}

				result.Downloads = append(result.Downloads, download)
				result.Links = append(result.Links, DownloadLink{
					BookName:    item.Book.Name,
					Format:      file.Format,
					Language:    file.Language,
					DownloadURL: DownloadURL(s.cfg.SiteURL, token),
					ExpiresAt:   expiresAt,
				})
			}

			deliveryItems = append(deliveryItems, deliveryItemFor(item))
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Entitlement issuance failed")
		return nil, err
	}

	metrics.EntitlementsIssued.Add(float64(len(result.Downloads)))
	log.WithField("downloads", len(result.Downloads)).Info("Entitlements issued")

	if len(result.Links) == 0 {
		return result, nil
	}

	result.NotificationSent = s.notify(ctx, order, deliveryItems, result.Links)
	return result, nil
}

// CreateLinksIfAbsent issues entitlements unless the order already has
// downloads. The existence check is not transactional; the optional Redis
// guard narrows the window for concurrent callers.
func (s *EntitlementService) CreateLinksIfAbsent(ctx context.Context, orderID uuid.UUID, prefs LanguagePreferences) (*IssueResult, error) {
	log := s.logger.WithField("order_id", orderID)

	release, acquired, err := s.guard.Acquire(ctx, orderID)
	switch {
	case err != nil:
		log.WithError(err).Warn("Issuance guard unavailable, continuing without it")
	case !acquired:
		log.Info("Issuance already in progress for order, skipping")
		return &IssueResult{OrderID: orderID, Skipped: true, Links: []DownloadLink{}}, nil
	default:
		defer release()
	}

	exists, err := s.hasDownloads(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if exists {
		log.Info("Download links already exist for order, skipping issuance")
		return &IssueResult{OrderID: orderID, Skipped: true, Links: []DownloadLink{}}, nil
	}

	return s.IssueEntitlements(ctx, orderID, prefs)
}

// GetDownloadStatus never fails for an order without downloads; it returns an
// empty list.
func (s *EntitlementService) GetDownloadStatus(ctx context.Context, orderID uuid.UUID) ([]DownloadStatus, error) {
	var downloads []models.DigitalDownload
	err := s.db.WithContext(ctx).
		Preload("OrderItem").
		Preload("DigitalFile.Book").
		Where("order_item_id IN (?)", s.orderItemIDs(orderID)).
		Order("created_at ASC").
		Find(&downloads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load downloads: %w", err)
	}

	now := s.now()
	statuses := make([]DownloadStatus, 0, len(downloads))
	for _, d := range downloads {
		status := DownloadStatus{
			DownloadID:   d.ID,
			OrderItemID:  d.OrderItemID,
			Downloaded:   d.DownloadedAt != nil,
			DownloadedAt: d.DownloadedAt,
			ExpiresAt:    d.ExpiresAt,
			Expired:      d.IsExpired(now),
		}
		if d.DigitalFile != nil {
			status.FileName = d.DigitalFile.FileName
			status.Format = d.DigitalFile.Format
			status.Language = d.DigitalFile.Language
			if d.DigitalFile.Book != nil {
				status.BookName = d.DigitalFile.Book.Name
			}
		}
		if d.OrderItem != nil {
			status.RemainingDownloads = d.OrderItem.RemainingDownloads()
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// RegenerateToken replaces the token of a download, clears its used state and
// gives it a fresh expiry. The item's download budget is shared and untouched.
func (s *EntitlementService) RegenerateToken(ctx context.Context, downloadID uuid.UUID) (*RegeneratedLink, error) {
	var download models.DigitalDownload
	if err := s.db.WithContext(ctx).Where("id = ?", downloadID).First(&download).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDownloadNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate download token: %w", err)
	}
	expiresAt := s.now().Add(s.cfg.RegeneratedTTL)

	err = s.db.WithContext(ctx).Model(&download).Updates(map[string]interface{}{
		"download_token": token,
		"downloaded_at":  nil,
		"expires_at":     expiresAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to regenerate token: %w", err)
	}

	metrics.TokensRegenerated.Inc()
	s.logger.WithFields(logrus.Fields{
		"download_id":     download.ID,
		"old_fingerprint": utils.TokenFingerprint(download.DownloadToken),
		"new_fingerprint": utils.TokenFingerprint(token),
	}).Info("Download token regenerated")

	return &RegeneratedLink{
		DownloadID:  download.ID,
		Token:       token,
		DownloadURL: DownloadURL(s.cfg.SiteURL, token),
		ExpiresAt:   expiresAt,
	}, nil
}

// ServeDownload redeems a token: it checks expiry and the item's budget,
// counts the download and returns a short-lived storage URL.
func (s *EntitlementService) ServeDownload(ctx context.Context, token string) (*ServedFile, error) {
	if len(token) != 2*utils.DownloadTokenBytes {
		metrics.DownloadsServed.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, ErrInvalidToken
	}

	log := s.logger.WithField("token", utils.TokenFingerprint(token))

	var download models.DigitalDownload
	err := s.db.WithContext(ctx).
		Preload("DigitalFile").
		Preload("OrderItem").
		Where("download_token = ?", token).
		First(&download).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.DownloadsServed.WithLabelValues(metrics.ResultInvalid).Inc()
			return nil, ErrInvalidToken
		}
		metrics.DownloadsServed.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("database error: %w", err)
	}

	if download.DigitalFile == nil || download.OrderItem == nil {
		metrics.DownloadsServed.WithLabelValues(metrics.ResultInvalid).Inc()
		return nil, ErrInvalidToken
	}

	now := s.now()
	if download.IsExpired(now) {
		metrics.DownloadsServed.WithLabelValues(metrics.ResultExpired).Inc()
		log.Info("Expired download link used")
		return nil, ErrDownloadExpired
	}
	if download.OrderItem.RemainingDownloads() == 0 {
		metrics.DownloadsServed.WithLabelValues(metrics.ResultLimitReached).Inc()
		return nil, ErrDownloadLimitReached
	}

	// Sign before counting so a storage failure does not cost the customer a
	// download.
	fileURL, err := s.storage.SignedURL(download.DigitalFile.StorageKey, download.DigitalFile.FileName, s.cfg.StorageURLTTL)
	if err != nil {
		metrics.DownloadsServed.WithLabelValues(metrics.ResultError).Inc()
		return nil, fmt.Errorf("failed to sign file URL: %w", err)
	}

	var counted models.OrderItem
	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		res := tx.Model(&models.OrderItem{}).
			Where("id = ? AND download_count < max_downloads", download.OrderItemID).
			UpdateColumn("download_count", gorm.Expr("download_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to count download: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDownloadLimitReached
		}

		if err := tx.Model(&models.DigitalDownload{}).
			Where("id = ? AND downloaded_at IS NULL", download.ID).
			UpdateColumn("downloaded_at", now).Error; err != nil {
			return fmt.Errorf("failed to stamp download: %w", err)
		}

		// Read the budget back; concurrent downloads may have moved it.
		return tx.Select("id", "max_downloads", "download_count").
			Where("id = ?", download.OrderItemID).
			First(&counted).Error
	})
	if err != nil {
		if errors.Is(err, ErrDownloadLimitReached) {
			metrics.DownloadsServed.WithLabelValues(metrics.ResultLimitReached).Inc()
		} else {
			metrics.DownloadsServed.WithLabelValues(metrics.ResultError).Inc()
		}
		return nil, err
	}

	metrics.DownloadsServed.WithLabelValues(metrics.ResultServed).Inc()
	log.WithField("download_id", download.ID).Info("Download served")

	return &ServedFile{
		URL:                fileURL,
		FileName:           download.DigitalFile.FileName,
		Format:             download.DigitalFile.Format,
		RemainingDownloads: counted.RemainingDownloads(),
	}, nil
}

// BackfillMissingEntitlements issues links for paid orders that have digital
// items but no downloads, e.g. when issuance failed at checkout. Orders whose
// books have no active files cannot produce links and are not selected, so
// they never crowd issuable orders out of a batch.
func (s *EntitlementService) BackfillMissingEntitlements(ctx context.Context) (*BackfillReport, error) {
	liveBooks := s.db.Model(&models.Book{}).Select("id")
	activeFiles := s.db.Model(&models.DigitalFile{}).
		Select("book_id").
		Where("is_active = ?", true).
		Where("book_id IN (?)", liveBooks)
	withBooks := s.db.Model(&models.OrderItem{}).
		Select("order_id").
		Where("is_digital = ? AND book_id IN (?)", true, activeFiles)
	withDownloads := s.db.Model(&models.OrderItem{}).
		Select("order_items.order_id").
		Joins("JOIN digital_downloads ON digital_downloads.order_item_id = order_items.id AND digital_downloads.deleted_at IS NULL")

	var orderIDs []uuid.UUID
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", models.FulfillableOrderStatuses).
		Where("id IN (?)", withBooks).
		Where("id NOT IN (?)", withDownloads).
		Order("created_at ASC").
		Limit(s.backfillBatch).
		Pluck("id", &orderIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find orders missing downloads: %w", err)
	}

	report := &BackfillReport{Scanned: len(orderIDs)}
	for _, orderID := range orderIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := s.CreateLinksIfAbsent(ctx, orderID, nil)
		outcome := backfillOutcome(result, err)
		switch outcome {
		case metrics.ResultError:
			report.Failed++
			s.logger.WithError(err).WithField("order_id", orderID).Error("Backfill failed for order")
		case metrics.ResultSkipped:
			report.Skipped++
		default:
			report.Issued++
		}
		metrics.BackfillOrders.WithLabelValues(outcome).Inc()
	}

	if report.Scanned > 0 {
		s.logger.WithFields(logrus.Fields{
			"scanned": report.Scanned,
			"issued":  report.Issued,
			"skipped": report.Skipped,
			"failed":  report.Failed,
		}).Info("Entitlement backfill finished")
	}
	return report, nil
}

// ResendDeliveryEmail sends the delivery email again with the order's
// unexpired links. Unlike issuance, a send failure is returned.
func (s *EntitlementService) ResendDeliveryEmail(ctx context.Context, orderID uuid.UUID) (int, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Preload("User").Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrOrderNotFound
		}
		return 0, fmt.Errorf("database error: %w", err)
	}

	var downloads []models.DigitalDownload
	err := s.db.WithContext(ctx).
		Preload("OrderItem.Book").
		Preload("DigitalFile").
		Where("order_item_id IN (?)", s.orderItemIDs(orderID)).
		Where("expires_at > ?", s.now()).
		Order("created_at ASC").
		Find(&downloads).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load downloads: %w", err)
	}
	if len(downloads) == 0 {
		return 0, ErrNoActiveDownloads
	}

	links := make([]DownloadLink, 0, len(downloads))
	var items []DeliveryItem
	seenItems := make(map[uuid.UUID]bool)
	for _, d := range downloads {
		if d.OrderItem == nil || d.OrderItem.Book == nil || d.DigitalFile == nil {
			continue
		}
		links = append(links, DownloadLink{
			BookName:    d.OrderItem.Book.Name,
			Format:      d.DigitalFile.Format,
			Language:    d.DigitalFile.Language,
			DownloadURL: DownloadURL(s.cfg.SiteURL, d.DownloadToken),
			ExpiresAt:   d.ExpiresAt,
		})
		if !seenItems[d.OrderItemID] {
			seenItems[d.OrderItemID] = true
			items = append(items, deliveryItemFor(d.OrderItem))
		}
	}

	if err := s.notifier.SendDigitalDelivery(ctx, deliveryEmailFor(&order, items, links)); err != nil {
		metrics.NotificationsFailed.Inc()
		return 0, fmt.Errorf("failed to resend delivery email: %w", err)
	}
	return len(links), nil
}

// OrderBelongsTo reports whether userID placed the order.
func (s *EntitlementService) OrderBelongsTo(ctx context.Context, orderID, userID uuid.UUID) (bool, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).Select("id", "user_id").Where("id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("database error: %w", err)
	}
	return order.UserID == userID, nil
}

func (s *EntitlementService) loadOrderForIssuance(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("User").
		Preload("Items", "is_digital = ?", true).
		Preload("Items.Book").
		Preload("Items.Book.DigitalFiles", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ?", true).Order("language ASC, format ASC")
		}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &order, nil
}

func (s *EntitlementService) orderItemIDs(orderID uuid.UUID) *gorm.DB {
	return s.db.Model(&models.OrderItem{}).Select("id").Where("order_id = ?", orderID)
}

func (s *EntitlementService) hasDownloads(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.DigitalDownload{}).
		Where("order_item_id IN (?)", s.orderItemIDs(orderID)).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check existing downloads: %w", err)
	}
	return count > 0, nil
}

// notify reports whether the email went out. Failures are logged only.
func (s *EntitlementService) notify(ctx context.Context, order *models.Order, items []DeliveryItem, links []DownloadLink) bool {
	log := s.logger.WithField("order_id", order.ID)

	if s.notifier == nil {
		return false
	}
	if order.User.Email == "" {
		log.Warn("Order has no purchaser email, delivery email not sent")
		return false
	}

	if err := s.notifier.SendDigitalDelivery(ctx, deliveryEmailFor(order, items, links)); err != nil {
		metrics.NotificationsFailed.Inc()
		log.WithError(err).Error("Failed to send delivery email")
		return false
	}
	return true
}

// selectFiles narrows files to the preferred language. When nothing matches
// the full active set is returned so the buyer still receives the book.
func selectFiles(files []models.DigitalFile, language string) []models.DigitalFile {
	if language == "" {
		return files
	}

	var matched []models.DigitalFile
	for _, f := range files {
		if strings.EqualFold(f.Language, language) {
			matched = append(matched, f)
		}
	}
	if len(matched) == 0 {
		return files
	}
	return matched
}

// backfillOutcome classifies one order of a backfill run. An order only
// counts as issued when downloads were actually created.
func backfillOutcome(result *IssueResult, err error) string {
	switch {
	case err != nil:
		return metrics.ResultError
	case result.Skipped || len(result.Downloads) == 0:
		return metrics.ResultSkipped
	default:
		return metrics.ResultIssued
	}
}

func deliveryItemFor(item *models.OrderItem) DeliveryItem {
	di := DeliveryItem{BookName: item.ProductName, Price: item.Price}
	if item.Book != nil {
		di.BookName = item.Book.Name
		di.Author = item.Book.Author
		di.CoverImage = item.Book.CoverImage
	}
	return di
}

func deliveryEmailFor(order *models.Order, items []DeliveryItem, links []DownloadLink) *DigitalDeliveryEmail {
	return &DigitalDeliveryEmail{
		To:           order.User.Email,
		CustomerName: order.User.DisplayName(),
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		Items:        items,
		Links:        links,
	}
}
