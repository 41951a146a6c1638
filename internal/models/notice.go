package models

// RenewalNotice полезная нагрузка письма о продлении, публикуется в очередь
// renewal.notice и потребляется сервисом отправки.
//
// URL заполнен, когда сервис работает в режиме ссылок; иначе он пуст,
// а RenewalToken содержит сырой токен для ручного ввода.
type RenewalNotice struct {
	MessageID      string   `json:"message_id"`
	UserID         string   `json:"user_id"`
	DisplayName    string   `json:"display_name"`
	Addresses      []string `json:"addresses"`
	ExpirationTsMs int64    `json:"expiration_ts"`
	URL            string   `json:"url,omitempty"`
	RenewalToken   string   `json:"renewal_token,omitempty"`
	AppName        string   `json:"app_name"`
}

// Profile строка справочника пользователей платформы: отображаемое имя
// и привязанные почтовые адреса. Справочник ведет внешняя система,
// account-validity его только читает.
type Profile struct {
	UserID      string
	DisplayName string
	Addresses   []string
}
