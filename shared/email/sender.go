package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"

	"motion-trends/internal/models"
	"motion-trends/internal/pipeline"
	"motion-trends/shared/config"
)

//go:embed templates/digest.html
var templateFS embed.FS

var digestTemplate = template.Must(
	template.New("digest.html").Funcs(template.FuncMap{
		"formatNumber":  pipeline.FormatNumber,
		"formatDecimal": pipeline.FormatDecimal,
		"topN": func(videos []models.VideoRecord, n int) []models.VideoRecord {
			if len(videos) > n {
				return videos[:n]
			}
			return videos
		},
	}).ParseFS(templateFS, "templates/digest.html"),
)

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Sender struct {
	config *config.EmailConfig
	send   sendFunc
}

func NewSender(cfg *config.EmailConfig) *Sender {
	return &Sender{
		config: cfg,
		send:   smtp.SendMail,
	}
}

// SendDigest renders and sends the trends digest. A report without a
// snapshot or without videos is skipped.
func (s *Sender) SendDigest(report *models.DigestReport) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}
	if report.Snapshot == nil || report.Snapshot.TotalVideos == 0 {
		return nil
	}

	subject := fmt.Sprintf("Motion Trends Digest - %d Videos, %s Views (%s)",
		report.Snapshot.TotalVideos,
		pipeline.FormatNumber(report.Snapshot.Summary.TotalViews),
		report.Date.Format("Jan 2, 2006"))

	body, err := generateDigestBody(report)
	if err != nil {
		return fmt.Errorf("failed to generate email body: %w", err)
	}

	return s.SendHTML(subject, body)
}

// SendHTML sends an email with custom HTML content
func (s *Sender) SendHTML(subject, htmlBody string) error {
	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.SMTPServer)

	from := s.config.FromEmail
	if from == "" {
		from = s.config.Username
	}

	msg := []byte(fmt.Sprintf(`To: %s
From: %s
Subject: %s
MIME-Version: 1.0
Content-Type: text/html; charset=UTF-8

%s`, s.config.ToEmail, from, subject, htmlBody))

	addr := fmt.Sprintf("%s:%d", s.config.SMTPServer, s.config.SMTPPort)
	if err := s.send(addr, auth, from, []string{s.config.ToEmail}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func generateDigestBody(report *models.DigestReport) (string, error) {
	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, report); err != nil {
		return "", err
	}
	return buf.String(), nil
}
