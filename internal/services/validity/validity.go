// Package validity содержит бизнес-логику срока действия учетных записей:
// выпуск и предъявление токенов продления, чтение и административное
// изменение момента истечения, подготовку почтовых напоминаний.
package validity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/account-validity/internal/config"
	"github.com/magabrotheeeer/account-validity/internal/lib/sl"
	"github.com/magabrotheeeer/account-validity/internal/lib/token"
	"github.com/magabrotheeeer/account-validity/internal/models"
	"github.com/magabrotheeeer/account-validity/internal/storage"
)

// ErrNoTokenGenerated не удалось выпустить уникальный токен за отведенные попытки.
var ErrNoTokenGenerated = errors.New("couldn't generate a unique renewal token")

// maxMintAttempts сколько раз повторяется выпуск при коллизии значения токена.
const maxMintAttempts = 5

// ValidityRepository определяет методы хранилища, нужные движку продления.
type ValidityRepository interface {
	// ProvisionAccount создает запись валидности, если ее еще нет.
	ProvisionAccount(ctx context.Context, userID string, expirationTsMs int64) error
	// GetExpirationTs возвращает момент истечения учетной записи.
	GetExpirationTs(ctx context.Context, userID string) (int64, error)
	// SetAccountValidity применяет административное изменение.
	SetAccountValidity(ctx context.Context, userID string, expirationTsMs int64, enableRenewalEmails *bool) error
	// SetRenewalMailSent отмечает отправку напоминания в текущем цикле.
	SetRenewalMailSent(ctx context.Context, userID string, sentTsMs int64) error
	// InsertRenewalToken сохраняет выпущенный токен.
	InsertRenewalToken(ctx context.Context, t models.RenewalToken) error
	// ConsumeRenewalToken атомарно предъявляет токен.
	ConsumeRenewalToken(ctx context.Context, token string, nowMs, newExpirationTsMs int64) (models.RenewalResult, error)
	// GetProfile читает отображаемое имя и адреса из справочника.
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

// Cache описывает методы для кэширования момента истечения.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// NoticePublisher отправляет напоминание о продлении внешнему отправителю писем.
type NoticePublisher interface {
	Publish(message any) error
}

// ValidityService реализует движок продления учетных записей.
type ValidityService struct {
	repo      ValidityRepository
	cache     Cache
	publisher NoticePublisher
	cfg       config.Validity
	log       *slog.Logger
	now       func() time.Time
}

// NewValidityService создает новый экземпляр ValidityService.
func NewValidityService(repo ValidityRepository, cache Cache, publisher NoticePublisher, cfg config.Validity, log *slog.Logger) *ValidityService {
	return &ValidityService{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("validity:%s", userID)
}

// defaultExpirationTs возвращает истечение для новой записи: now + period,
// уменьшенное на случайную долю до 10% периода, чтобы напоминания для
// массово заведенных пользователей не уходили одной пачкой.
func (s *ValidityService) defaultExpirationTs(nowMs int64) int64 {
	periodMs := s.cfg.Period.Milliseconds()
	maxDelta := periodMs / 10
	if maxDelta <= 0 {
		return nowMs + periodMs
	}
	return nowMs + periodMs - rand.Int64N(maxDelta)
}

// MintToken выпускает новый токен продления для пользователя, привязанный
// к текущему моменту истечения его учетной записи. Письмо при этом не
// отправляется и сама запись валидности не меняется.
//
// Если записи валидности нет и автозаведение включено, запись создается
// с истечением по умолчанию; иначе возвращается storage.ErrUserNotFound.
func (s *ValidityService) MintToken(ctx context.Context, userID string) (*models.RenewalToken, error) {
	nowMs := s.now().UnixMilli()

	if s.cfg.AutoProvision {
		if err := s.repo.ProvisionAccount(ctx, userID, s.defaultExpirationTs(nowMs)); err != nil {
			return nil, err
		}
	}

	expirationTsMs, err := s.repo.GetExpirationTs(ctx, userID)
	if err != nil {
		return nil, err
	}

	for range maxMintAttempts {
		value, err := token.New()
		if err != nil {
			return nil, err
		}
		t := models.RenewalToken{
			Token:          value,
			UserID:         userID,
			ExpirationTsMs: expirationTsMs,
			CreatedTsMs:    nowMs,
		}
		err = s.repo.InsertRenewalToken(ctx, t)
		if errors.Is(err, storage.ErrTokenExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info("minted renewal token", slog.String("user_id", userID))
		return &t, nil
	}
	return nil, ErrNoTokenGenerated
}

// ConsumeToken предъявляет токен продления и возвращает один из трех исходов:
// renewed, already_renewed или invalid. Ошибка хранилища возвращается как
// ошибка, чтобы вызывающая сторона не сочла легитимный токен невалидным.
func (s *ValidityService) ConsumeToken(ctx context.Context, tokenStr string) (models.RenewalResult, error) {
	nowMs := s.now().UnixMilli()
	newExpirationTsMs := nowMs + s.cfg.Period.Milliseconds()

	result, err := s.repo.ConsumeRenewalToken(ctx, tokenStr, nowMs, newExpirationTsMs)
	if err != nil {
		return result, err
	}

	switch result.Status {
	case models.StatusRenewed:
		s.log.Info("account renewed",
			slog.String("user_id", result.UserID), slog.Int64("expiration_ts", result.ExpirationTsMs))
		if err := s.cache.Invalidate(cacheKey(result.UserID)); err != nil {
			s.log.Warn("failed to invalidate expiration cache",
				slog.String("user_id", result.UserID), sl.Err(err))
		}
	case models.StatusAlreadyRenewed:
		s.log.Info("repeated use of the latest renewal token", slog.String("user_id", result.UserID))
	case models.StatusInvalid:
		s.log.Info("invalid renewal token presented")
	}
	return result, nil
}

// GetExpiration возвращает момент истечения учетной записи, используя кеш.
func (s *ValidityService) GetExpiration(ctx context.Context, userID string) (int64, error) {
	var cached int64
	found, err := s.cache.Get(cacheKey(userID), &cached)
	if err != nil {
		s.log.Warn("failed to read expiration from cache", slog.String("user_id", userID), sl.Err(err))
	}
	if found {
		return cached, nil
	}

	expirationTsMs, err := s.repo.GetExpirationTs(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.cache.Set(cacheKey(userID), expirationTsMs, time.Hour); err != nil {
		s.log.Warn("failed to cache expiration", slog.String("user_id", userID), sl.Err(err))
	}
	return expirationTsMs, nil
}

// SetAccountValidity применяет административное изменение срока действия.
// Отсутствующее expiration_ts означает now + period. Возвращает примененное
// значение истечения.
func (s *ValidityService) SetAccountValidity(ctx context.Context, userID string, expirationTsMs *int64, enableRenewalEmails *bool) (int64, error) {
	applied := s.now().UnixMilli() + s.cfg.Period.Milliseconds()
	if expirationTsMs != nil {
		applied = *expirationTsMs
	}

	if err := s.repo.SetAccountValidity(ctx, userID, applied, enableRenewalEmails); err != nil {
		return 0, err
	}
	if err := s.cache.Invalidate(cacheKey(userID)); err != nil {
		s.log.Warn("failed to invalidate expiration cache", slog.String("user_id", userID), sl.Err(err))
	}
	s.log.Info("account validity overridden",
		slog.String("user_id", userID), slog.Int64("expiration_ts", applied))
	return applied, nil
}

// SendRenewalEmailToUser выпускает токен и передает напоминание отправителю
// писем. Пользователи без почтовых адресов молча пропускаются: им продление
// доступно только через администратора. Отметка об отправке ставится только
// после того, как брокер принял сообщение.
func (s *ValidityService) SendRenewalEmailToUser(ctx context.Context, userID string) error {
	const op = "validity.SendRenewalEmailToUser"

	profile, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(profile.Addresses) == 0 {
		s.log.Info("user has no email address, skipping renewal email", slog.String("user_id", userID))
		return nil
	}

	t, err := s.MintToken(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	notice := models.RenewalNotice{
		MessageID:      uuid.New().String(),
		UserID:         userID,
		DisplayName:    profile.DisplayName,
		Addresses:      profile.Addresses,
		ExpirationTsMs: t.ExpirationTsMs,
		AppName:        s.cfg.AppName,
	}
	if s.cfg.SendLinks {
		notice.URL = fmt.Sprintf("%s/renew?token=%s",
			strings.TrimRight(s.cfg.PublicBaseURL, "/"), t.Token)
	} else {
		notice.RenewalToken = t.Token
	}

	if err := s.publisher.Publish(notice); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.repo.SetRenewalMailSent(ctx, userID, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("renewal notice dispatched", slog.String("user_id", userID))
	return nil
}
