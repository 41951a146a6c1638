// Package sender реализует доставку писем о продлении учетной записи.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/account-validity/internal/config"
	"github.com/magabrotheeeer/account-validity/internal/lib/sl"
	"github.com/magabrotheeeer/account-validity/internal/lib/smtp"
	"github.com/magabrotheeeer/account-validity/internal/models"
)

// SenderService читает уведомления из очереди и отправляет их по SMTP.
type SenderService struct {
	transport smtp.TransportInterface
	cfg       config.Validity
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(cfg config.Validity, log *slog.Logger, transport smtp.TransportInterface) *SenderService {
	return &SenderService{
		transport: transport,
		cfg:       cfg,
		log:       log,
	}
}

// SendRenewalNotice отправляет одно письмо о продлении по телу сообщения
// из очереди уведомлений.
func (s *SenderService) SendRenewalNotice(body []byte) error {
	var notice models.RenewalNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.log.Error("Failed to unmarshal message body", "error", sl.Err(err))
		return fmt.Errorf("error unmarshalling message: %w", err)
	}
	if len(notice.Addresses) == 0 {
		return fmt.Errorf("notice %s for user %s has no addresses", notice.MessageID, notice.UserID)
	}

	subject := s.subjectLine(notice.AppName)
	bodyText := renewalBody(&notice)

	return s.sendEmail(notice.Addresses, subject, bodyText)
}

// subjectLine подставляет имя приложения в шаблон темы письма.
// Шаблон без подстановки используется как есть.
func (s *SenderService) subjectLine(appName string) string {
	if appName == "" {
		appName = s.cfg.AppName
	}
	if strings.Contains(s.cfg.RenewEmailSubject, "%s") {
		return fmt.Sprintf(s.cfg.RenewEmailSubject, appName)
	}
	return s.cfg.RenewEmailSubject
}

func renewalBody(notice *models.RenewalNotice) string {
	expires := time.UnixMilli(notice.ExpirationTsMs).UTC().Format("02-01-2006")

	if notice.URL != "" {
		return fmt.Sprintf(`Hello, %s!

Your %s account expires on %s. Follow the link below to extend its validity:

%s

If you do nothing, the account will be deactivated after that date.`,
			notice.DisplayName, notice.AppName, expires, notice.URL)
	}

	return fmt.Sprintf(`Hello, %s!

Your %s account expires on %s. Use the renewal token below to extend its validity:

%s

If you do nothing, the account will be deactivated after that date.`,
		notice.DisplayName, notice.AppName, expires, notice.RenewalToken)
}

func (s *SenderService) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("Failed to connect to SMTP server", "error", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("Failed to set MAIL FROM", "from", s.transport.GetSMTPUser(), "error", sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("Failed to set RCPT TO", "recipient", addr, "error", sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("Failed to get Data writer", "error", sl.Err(err))
		return err
	}

	_, err = wc.Write([]byte(msg))
	if err != nil {
		s.log.Error("Failed to write email body", "error", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("Failed to close Data writer", "error", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("Failed to quit SMTP client", "error", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", "to", to)
	return nil
}
