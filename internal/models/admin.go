package models

// DummyAdminRequest используется для приёма тела запроса POST /admin,
// прежде чем применить изменение к учетной записи.
// Отсутствующий expiration_ts означает "now + period",
// отсутствующий enable_renewal_emails оставляет флаг без изменений.
type DummyAdminRequest struct {
	UserID              string `json:"user_id" validate:"required"` // Идентификатор пользователя
	ExpirationTsMs      *int64 `json:"expiration_ts,omitempty"`     // Новый момент истечения, мс с эпохи
	EnableRenewalEmails *bool  `json:"enable_renewal_emails,omitempty"`
}
