package services

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/bookshop-backend/internal/config"
)

func sampleDeliveryEmail() *DigitalDeliveryEmail {
	return &DigitalDeliveryEmail{
		To:           "reader@example.com",
		CustomerName: "Ana",
		OrderID:      uuid.New(),
		OrderNumber:  "ORD-1",
		Items: []DeliveryItem{
			{BookName: "Born for the Future", Author: "Bookshop Press", Price: 12.5, CoverImage: "/covers/bftf.jpg"},
		},
		Links: []DownloadLink{
			{BookName: "Born for the Future", Format: "epub", Language: "en", DownloadURL: "https://shop.example.com/api/download/aaa", ExpiresAt: time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)},
			{BookName: "Born for the Future", Format: "epub", Language: "ro", DownloadURL: "https://shop.example.com/api/download/bbb", ExpiresAt: time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestSendDigitalDeliveryRendersLinks(t *testing.T) {
	svc, err := NewNotificationService(config.EmailConfig{
		SMTPHost:  "smtp.example.com",
		SMTPPort:  "587",
		FromEmail: "noreply@example.com",
		FromName:  "Bookshop",
	})
	require.NoError(t, err)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	svc.sendMail = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, svc.SendDigitalDelivery(context.Background(), sampleDeliveryEmail()))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"reader@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Your ebooks for order ORD-1")
	assert.Contains(t, gotMsg, "https://shop.example.com/api/download/aaa")
	assert.Contains(t, gotMsg, "https://shop.example.com/api/download/bbb")
	assert.Contains(t, gotMsg, "(epub, ro)")
	assert.Contains(t, gotMsg, "14 November 2026")
	assert.Contains(t, gotMsg, "12.50")
}

func TestSendDigitalDeliveryPropagatesSMTPErrors(t *testing.T) {
	svc, err := NewNotificationService(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: "587"})
	require.NoError(t, err)
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err = svc.SendDigitalDelivery(context.Background(), sampleDeliveryEmail())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection refused"))
}

func TestSendDigitalDeliveryWithoutSMTPOnlyLogs(t *testing.T) {
	svc, err := NewNotificationService(config.EmailConfig{})
	require.NoError(t, err)
	svc.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not be called without SMTP host")
		return nil
	}

	assert.NoError(t, svc.SendDigitalDelivery(context.Background(), sampleDeliveryEmail()))
}

func TestSendDigitalDeliveryRequiresRecipient(t *testing.T) {
	svc, err := NewNotificationService(config.EmailConfig{})
	require.NoError(t, err)

	email := sampleDeliveryEmail()
	email.To = ""
	assert.Error(t, svc.SendDigitalDelivery(context.Background(), email))
}
