// Package sweeper реализует периодический обход учетных записей,
// входящих в окно уведомления перед истечением.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/account-validity/internal/lib/sl"
	"github.com/magabrotheeeer/account-validity/internal/models"
)

// ValidityRepository определяет выборку учетных записей для напоминаний.
type ValidityRepository interface {
	ListExpiringSoon(ctx context.Context, windowEndMs int64) ([]*models.ExpiringAccount, error)
}

// RenewalMailer готовит и передает напоминание для одного пользователя.
type RenewalMailer interface {
	SendRenewalEmailToUser(ctx context.Context, userID string) error
}

// SweeperService периодически находит истекающие учетные записи и
// инициирует для них напоминания о продлении.
type SweeperService struct {
	repo     ValidityRepository
	mailer   RenewalMailer
	renewAt  time.Duration
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeperService создает новый экземпляр SweeperService.
func NewSweeperService(repo ValidityRepository, mailer RenewalMailer, renewAt, interval time.Duration, log *slog.Logger) *SweeperService {
	return &SweeperService{
		repo:     repo,
		mailer:   mailer,
		renewAt:  renewAt,
		interval: interval,
		log:      log,
		now:      time.Now,
	}
}

// Run выполняет обход сразу при старте и далее по тикеру до отмены контекста.
func (s *SweeperService) Run(ctx context.Context) {
	s.Sweep(ctx, s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(ctx, s.now())
		case <-ctx.Done():
			return
		}
	}
}

// Sweep один проход обходчика для заданного момента времени.
//
// Неудача по одному пользователю не прерывает остальных: отметка об
// отправке у него не ставится, и следующий проход выберет его снова.
func (s *SweeperService) Sweep(ctx context.Context, now time.Time) {
	s.log.Info("starting sweep for accounts entering the renewal window")

	windowEndMs := now.Add(s.renewAt).UnixMilli()
	accounts, err := s.repo.ListExpiringSoon(ctx, windowEndMs)
	if err != nil {
		s.log.Error("failed to list expiring accounts", sl.Err(err))
		return
	}
	if len(accounts) == 0 {
		s.log.Info("no expiring accounts found")
		return
	}
	s.log.Info("found expiring accounts", "count", len(accounts))

	var failed int
	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		if err := s.mailer.SendRenewalEmailToUser(ctx, account.UserID); err != nil {
			failed++
			s.log.Error("failed to dispatch renewal email",
				slog.String("user_id", account.UserID), sl.Err(err))
		}
	}
	s.log.Info("sweep finished", "count", len(accounts), "failed", failed)
}
