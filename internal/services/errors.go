// internal/services/errors.go
package services

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDownloadNotFound     = errors.New("download not found")
	ErrInvalidToken         = errors.New("invalid download token")
	ErrDownloadExpired      = errors.New("download link expired")
	ErrDownloadLimitReached = errors.New("download limit reached")
	ErrNoActiveDownloads    = errors.New("order has no active downloads")
	ErrOrderNotPayable      = errors.New("order cannot be marked as paid")
)
