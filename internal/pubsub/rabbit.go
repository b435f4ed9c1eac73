package pubsub

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Rabbit publishes queue events to a RabbitMQ topic exchange so other
// services (notifications, checkout) can consume them. Event topics map
// directly to routing keys.
type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func (r *Rabbit) Publish(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.ch.PublishWithContext(ctx, r.exchange, topic, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}

// Forward attaches the rabbit publisher as a wildcard subscriber on the
// broker, so every controller event is mirrored to the exchange.
func (r *Rabbit) Forward(broker *Broker, log zerolog.Logger) {
	broker.Subscribe(TopicAll, func(ctx context.Context, topic string, payload any) {
		if err := r.Publish(ctx, topic, payload); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("rabbit publish failed")
		}
	})
}
