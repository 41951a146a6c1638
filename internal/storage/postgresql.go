// Package storage реализует хранилище срока действия учетных записей
// на основе PostgreSQL: таблицу account_validity, журнал одноразовых
// токенов продления renewal_tokens и чтение справочника пользователей.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/account-validity/internal/models"
)

// Ошибки уровня хранилища. Недоступность базы возвращается как есть
// (обернутая ошибка драйвера) и никогда не маскируется под "токен невалиден".
var (
	// ErrUserNotFound учетная запись отсутствует в account_validity.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenExists токен с таким значением уже выпущен.
	ErrTokenExists = errors.New("renewal token already exists")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'account_validity'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table account_validity missing or query error: %w", err)
	}
	return nil
}

// ===== ACCOUNT VALIDITY =====

// ProvisionAccount создает запись валидности с заданным истечением,
// если ее еще нет. Существующая запись не изменяется.
func (s *Storage) ProvisionAccount(ctx context.Context, userID string, expirationTsMs int64) error {
	const op = "storage.ProvisionAccount"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO account_validity (user_id, expiration_ts_ms, renewal_emails_enabled)
			  VALUES ($1, $2, TRUE)
			  ON CONFLICT (user_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, userID, expirationTsMs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetAccount возвращает запись валидности учетной записи.
func (s *Storage) GetAccount(ctx context.Context, userID string) (*models.AccountValidity, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, expiration_ts_ms, renewal_emails_enabled, email_sent_ts_ms, renewed_by_token
			  FROM account_validity WHERE user_id = $1`
	row := s.DB.QueryRowContext(ctx, query, userID)

	var result models.AccountValidity
	var emailSent sql.NullInt64
	var renewedBy sql.NullString
	err := row.Scan(&result.UserID, &result.ExpirationTsMs, &result.RenewalEmailsEnabled, &emailSent, &renewedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if emailSent.Valid {
		result.EmailSentTsMs = &emailSent.Int64
	}
	if renewedBy.Valid {
		result.RenewedByToken = &renewedBy.String
	}
	return &result, nil
}

// GetExpirationTs возвращает момент истечения учетной записи.
func (s *Storage) GetExpirationTs(ctx context.Context, userID string) (int64, error) {
	const op = "storage.GetExpirationTs"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var expirationTsMs int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT expiration_ts_ms FROM account_validity WHERE user_id = $1`, userID).Scan(&expirationTsMs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return expirationTsMs, nil
}

// SetAccountValidity применяет административное изменение: новое истечение
// и, если передан, флаг напоминаний. Начинается новый цикл — отметка об
// отправленном письме и ссылка на последний токен продления сбрасываются.
// Таблица токенов не затрагивается.
func (s *Storage) SetAccountValidity(ctx context.Context, userID string, expirationTsMs int64, enableRenewalEmails *bool) error {
	const op = "storage.SetAccountValidity"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO account_validity (user_id, expiration_ts_ms, renewal_emails_enabled)
			  VALUES ($1, $2, COALESCE($3, TRUE))
			  ON CONFLICT (user_id) DO UPDATE
			  SET expiration_ts_ms = EXCLUDED.expiration_ts_ms,
			      renewal_emails_enabled = COALESCE($3, account_validity.renewal_emails_enabled),
			      email_sent_ts_ms = NULL,
			      renewed_by_token = NULL`
	if _, err := s.DB.ExecContext(ctx, query, userID, expirationTsMs, enableRenewalEmails); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SetRenewalMailSent отмечает, что напоминание для текущего цикла отправлено.
func (s *Storage) SetRenewalMailSent(ctx context.Context, userID string, sentTsMs int64) error {
	const op = "storage.SetRenewalMailSent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx,
		`UPDATE account_validity SET email_sent_ts_ms = $2 WHERE user_id = $1`, userID, sentTsMs)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	return nil
}

// ListExpiringSoon выбирает учетные записи, которым пора отправить
// напоминание: напоминания включены, письмо в текущем цикле еще не уходило
// и истечение попадает в окно (включая уже истекшие записи).
func (s *Storage) ListExpiringSoon(ctx context.Context, windowEndMs int64) ([]*models.ExpiringAccount, error) {
	const op = "storage.ListExpiringSoon"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, expiration_ts_ms FROM account_validity
			  WHERE renewal_emails_enabled = TRUE
			    AND email_sent_ts_ms IS NULL
			    AND expiration_ts_ms <= $1
			  ORDER BY expiration_ts_ms`
	rows, err := s.DB.QueryContext(ctx, query, windowEndMs)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []*models.ExpiringAccount
	for rows.Next() {
		var item models.ExpiringAccount
		if err := rows.Scan(&item.UserID, &item.ExpirationTsMs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ===== RENEWAL TOKENS =====

// InsertRenewalToken сохраняет новый токен продления, привязанный к текущему
// циклу учетной записи. Возвращает ErrTokenExists при коллизии значения.
func (s *Storage) InsertRenewalToken(ctx context.Context, t models.RenewalToken) error {
	const op = "storage.InsertRenewalToken"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO renewal_tokens (token, user_id, expiration_ts_ms, used, created_ts_ms)
			  VALUES ($1, $2, $3, FALSE, $4)`
	_, err := s.DB.ExecContext(ctx, query, t.Token, t.UserID, t.ExpirationTsMs, t.CreatedTsMs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, ErrTokenExists)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeRenewalToken атомарно предъявляет токен продления.
//
// Вся проверка выполняется в одной транзакции: строка учетной записи
// блокируется FOR UPDATE, переход used=false -> true делается условным
// UPDATE ... WHERE used = FALSE, так что два одновременных предъявления
// одного свежего токена дают ровно одно renewed. Ошибка базы возвращается
// как ошибка (флаг used не тронут), а не как невалидный токен.
func (s *Storage) ConsumeRenewalToken(ctx context.Context, token string, nowMs, newExpirationTsMs int64) (models.RenewalResult, error) {
	const op = "storage.ConsumeRenewalToken"
	invalid := models.RenewalResult{Status: models.StatusInvalid}
	select {
	case <-ctx.Done():
		return invalid, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	var userID string
	var tokenExpMs int64
	var used bool
	// Строка токена блокируется первой, затем строка учетной записи.
	// Параллельные предъявления одного токена выстраиваются здесь и видят
	// уже зафиксированное состояние победителя.
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, expiration_ts_ms, used FROM renewal_tokens WHERE token = $1 FOR UPDATE`,
		token).Scan(&userID, &tokenExpMs, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return invalid, nil
	}
	if err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}

	var accountExpMs int64
	var renewedBy sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT expiration_ts_ms, renewed_by_token FROM account_validity WHERE user_id = $1 FOR UPDATE`,
		userID).Scan(&accountExpMs, &renewedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return invalid, nil
	}
	if err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}

	if used {
		// Повтор последнего успешного продления — дружелюбный ответ,
		// любой другой использованный токен относится к вытесненному циклу.
		if tokenExpMs == accountExpMs && renewedBy.Valid && renewedBy.String == token {
			return models.RenewalResult{Status: models.StatusAlreadyRenewed, UserID: userID, ExpirationTsMs: accountExpMs}, nil
		}
		return invalid, nil
	}

	// Неиспользованный токен, выпущенный против уже вытесненного цикла,
	// не может продлевать текущий.
	if tokenExpMs != accountExpMs {
		return invalid, nil
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE renewal_tokens SET used = TRUE, used_ts_ms = $2, expiration_ts_ms = $3
		 WHERE token = $1 AND used = FALSE`,
		token, nowMs, newExpirationTsMs)
	if err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		// Параллельное предъявление успело раньше.
		return models.RenewalResult{Status: models.StatusAlreadyRenewed, UserID: userID, ExpirationTsMs: accountExpMs}, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE account_validity
		 SET expiration_ts_ms = $2, email_sent_ts_ms = NULL, renewed_by_token = $3
		 WHERE user_id = $1`,
		userID, newExpirationTsMs, token)
	if err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return invalid, fmt.Errorf("%s: %w", op, err)
	}
	return models.RenewalResult{Status: models.StatusRenewed, UserID: userID, ExpirationTsMs: newExpirationTsMs}, nil
}

// ===== USER DIRECTORY =====

// GetProfile читает отображаемое имя и почтовые адреса пользователя из
// справочника платформы. Запись без адресов — валидная ситуация: такому
// пользователю напоминание не отправляется.
func (s *Storage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "storage.GetProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	profile := models.Profile{UserID: userID, DisplayName: userID}

	var displayName sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT display_name FROM users WHERE user_id = $1`, userID).Scan(&displayName)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if displayName.Valid && displayName.String != "" {
		profile.DisplayName = displayName.String
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT address FROM user_emails WHERE user_id = $1 ORDER BY address`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var address string
		if err := rows.Scan(&address); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		profile.Addresses = append(profile.Addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &profile, nil
}
