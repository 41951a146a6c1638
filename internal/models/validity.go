// Package models содержит доменные структуры срока действия учетных записей:
// запись валидности, токен продления, результат продления и полезную нагрузку
// для почтовых уведомлений.
package models

// AccountValidity представляет состояние срока действия одной учетной записи.
// Все метки времени хранятся в миллисекундах с начала эпохи.
type AccountValidity struct {
	UserID               string // Идентификатор пользователя
	ExpirationTsMs       int64  // Момент истечения учетной записи
	RenewalEmailsEnabled bool   // Разрешены ли напоминания по почте
	EmailSentTsMs        *int64 // Когда отправлено напоминание в текущем цикле (nil — не отправлялось)
	RenewedByToken       *string
}

// ExpiringAccount строка выборки обходчика: кому пора отправить напоминание.
type ExpiringAccount struct {
	UserID         string
	ExpirationTsMs int64
}

// RenewalToken представляет одноразовый токен продления.
// ExpirationTsMs — цикл, к которому привязан токен: при выпуске это снимок
// текущего истечения учетной записи, при успешном продлении токен
// перепривязывается к новому значению, чтобы повторное предъявление
// отличалось от устаревшего.
type RenewalToken struct {
	Token          string
	UserID         string
	ExpirationTsMs int64
	Used           bool
	UsedTsMs       *int64
	CreatedTsMs    int64
}

// RenewalStatus исход предъявления токена продления.
type RenewalStatus string

const (
	// StatusRenewed токен принят, срок действия продлен.
	StatusRenewed RenewalStatus = "renewed"
	// StatusAlreadyRenewed тем же токеном уже продлевали, срок не изменился.
	StatusAlreadyRenewed RenewalStatus = "already_renewed"
	// StatusInvalid токен неизвестен или относится к устаревшему циклу.
	StatusInvalid RenewalStatus = "invalid"
)

// RenewalResult результат предъявления токена.
// ExpirationTsMs и UserID заполнены для Renewed и AlreadyRenewed,
// для Invalid остаются нулевыми.
type RenewalResult struct {
	Status         RenewalStatus
	UserID         string
	ExpirationTsMs int64
}
