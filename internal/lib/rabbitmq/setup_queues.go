// Package rabbitmq содержит обвязку для работы с RabbitMQ:
// подключение с ретраями, объявление очередей, публикацию и потребление.
package rabbitmq

// NotificationsExchange exchange, через который проходят уведомления о продлении.
const NotificationsExchange = "account-validity"

// RenewalNoticeQueue очередь с напоминаниями о продлении учетной записи.
const RenewalNoticeQueue = "renewal.notice"

// RenewalNoticeRoutingKey ключ маршрутизации для напоминаний.
const RenewalNoticeRoutingKey = "renewal"

// QueueConfig описывает очередь и ее ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые нужны сервисам уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: RenewalNoticeQueue, RoutingKey: RenewalNoticeRoutingKey},
	}
}
