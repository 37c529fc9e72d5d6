package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v3"
	"go.uber.org/zap"

	"socialnet/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type Service interface {
	SendWelcomeEmail(ctx context.Context, toEmail, name string) error
}

type service struct {
	client *resend.Client
	config *config.Config
	log    *zap.Logger
}

// NewService returns a no-op sender when no Resend key is configured.
func NewService(cfg *config.Config, log *zap.Logger) Service {
	if cfg.ResendAPIKey == "" {
		log.Info("RESEND_API_KEY not set; outgoing email disabled")
		return noopService{}
	}
	return &service{
		client: resend.NewClient(cfg.ResendAPIKey),
		config: cfg,
		log:    log,
	}
}

func (s *service) sendEmail(ctx context.Context, toEmail, subject, templateName string, data any) error {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("Socialnet <%s>", s.config.FromEmail),
		To:      []string{toEmail},
		Html:    body.String(),
		Subject: subject,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	return err
}

func (s *service) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	data := struct {
		Title string
		Name  string
		Link  string
	}{
		Title: "Welcome to Socialnet",
		Name:  name,
		Link:  fmt.Sprintf("https://%s/login", s.config.Domain),
	}
	return s.sendEmail(ctx, toEmail, "Welcome to Socialnet!", "welcome.html", data)
}

type noopService struct{}

func (noopService) SendWelcomeEmail(context.Context, string, string) error { return nil }
