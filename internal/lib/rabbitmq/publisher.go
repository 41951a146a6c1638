package rabbitmq

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

// PublishMessage публикует сообщение в RabbitMQ.
func PublishMessage(ch *amqp.Channel, exchange string, routingkey string, message any) error {
	const op = "rabbitmq.PublishMessage"
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = ch.Publish(
		exchange,
		routingkey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NoticePublisher публикует напоминания о продлении в exchange уведомлений.
// Оборачивает канал, чтобы сервисы зависели от узкого интерфейса.
type NoticePublisher struct {
	ch *amqp.Channel
}

// NewNoticePublisher создает новый NoticePublisher поверх канала.
func NewNoticePublisher(ch *amqp.Channel) *NoticePublisher {
	return &NoticePublisher{ch: ch}
}

// Publish отправляет напоминание в очередь renewal.notice.
func (p *NoticePublisher) Publish(message any) error {
	return PublishMessage(p.ch, NotificationsExchange, RenewalNoticeRoutingKey, message)
}
