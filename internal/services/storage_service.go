// internal/services/storage_service.go
package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/javajoker/bookshop-backend/internal/config"
)

// FileURLSigner turns a storage key into a short-lived URL the browser can
// fetch the file from.
type FileURLSigner interface {
	SignedURL(key, fileName string, ttl time.Duration) (string, error)
}

type StorageService struct {
	s3Client *s3.S3
	bucket   string
	siteURL  string
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	svc := &StorageService{
		bucket:  cfg.AWS.S3Bucket,
		siteURL: strings.TrimRight(cfg.Downloads.SiteURL, "/"),
	}

	if cfg.AWS.AccessKeyID == "" {
		// Files are served locally in development
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

func (s *StorageService) SignedURL(key, fileName string, ttl time.Duration) (string, error) {
	if key == "" {
		return "", fmt.Errorf("storage key is empty")
	}

	if s.s3Client == nil {
		return fmt.Sprintf("%s/files/%s", s.siteURL, key), nil
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		disposition := fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s", fileName, url.PathEscape(fileName))
		input.ResponseContentDisposition = aws.String(disposition)
	}

	req, _ := s.s3Client.GetObjectRequest(input)
	signed, err := req.Presign(ttl)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return signed, nil
}
