// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/bookshop-backend/internal/config"
)

// DeliveryItem is a purchased book as shown in the delivery email.
type DeliveryItem struct {
	BookName   string  `json:"book_name"`
	Author     string  `json:"author"`
	Price      float64 `json:"price"`
	CoverImage string  `json:"cover_image"`
}

// DownloadLink is one issued download as shown to the customer.
type DownloadLink struct {
	BookName    string    `json:"book_name"`
	Format      string    `json:"format"`
	Language    string    `json:"language"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type DigitalDeliveryEmail struct {
	To           string
	CustomerName string
	OrderID      uuid.UUID
	OrderNumber  string
	Items        []DeliveryItem
	Links        []DownloadLink
}

// DeliveryNotifier sends the email carrying download links for an order.
type DeliveryNotifier interface {
	SendDigitalDelivery(ctx context.Context, email *DigitalDeliveryEmail) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type NotificationService struct {
	config   config.EmailConfig
	template *template.Template
	sendMail sendMailFunc
	logger   *logrus.Entry
}

func NewNotificationService(cfg config.EmailConfig) (*NotificationService, error) {
	tmpl, err := template.New("digital_delivery").Funcs(template.FuncMap{
		"date":  func(t time.Time) string { return t.Format("2 January 2006") },
		"price": func(p float64) string { return fmt.Sprintf("%.2f", p) },
	}).Parse(digitalDeliveryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email template: %w", err)
	}

	return &NotificationService{
		config:   cfg,
		template: tmpl,
		sendMail: smtp.SendMail,
		logger:   logrus.WithField("component", "notifications"),
	}, nil
}

func (s *NotificationService) SendDigitalDelivery(ctx context.Context, email *DigitalDeliveryEmail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if email.To == "" {
		return fmt.Errorf("delivery email for order %s has no recipient", email.OrderNumber)
	}

	body, err := s.renderDelivery(email)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	subject := fmt.Sprintf("Your ebooks for order %s", email.OrderNumber)
	return s.sendEmail(email.To, subject, body)
}

func (s *NotificationService) renderDelivery(email *DigitalDeliveryEmail) (string, error) {
	var buf bytes.Buffer
	if err := s.template.Execute(&buf, email); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.SMTPHost == "" {
		// Email not configured, just log
		s.logger.WithFields(logrus.Fields{
			"to":      to,
			"subject": subject,
		}).Info("SMTP not configured, skipping email")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)

	msg := []byte(fmt.Sprintf(
		"From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s",
		s.config.FromName, s.config.FromEmail, to, subject, body,
	))

	addr := fmt.Sprintf("%s:%s", s.config.SMTPHost, s.config.SMTPPort)
	if err := s.sendMail(addr, auth, s.config.FromEmail, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
	}).Info("Email sent")
	return nil
}

const digitalDeliveryTemplate = `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you for your order, {{.CustomerName}}!</h2>
	<p>Your ebooks from order <strong>{{.OrderNumber}}</strong> are ready.</p>
	<table>
	{{range .Items}}
		<tr>
			<td>{{if .CoverImage}}<img src="{{.CoverImage}}" alt="{{.BookName}}" width="80">{{end}}</td>
			<td><strong>{{.BookName}}</strong><br>{{.Author}}</td>
			<td>{{price .Price}}</td>
		</tr>
	{{end}}
	</table>
	<h3>Your download links</h3>
	<ul>
	{{range .Links}}
		<li>
			<a href="{{.DownloadURL}}">{{.BookName}} ({{.Format}}, {{.Language}})</a>
			<br><small>Available until {{date .ExpiresAt}}</small>
		</li>
	{{end}}
	</ul>
	<p>Each link can be used a limited number of times. If a link stops working, reply to this email and we will send you a new one.</p>
	<p>Best regards,<br>The Bookshop Team</p>
</body>
</html>`
