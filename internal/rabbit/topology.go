package rabbit

import (
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/yourorg/dm-service/internal/config"
)

// declareTopology sets up the durable exchange/queue/binding triple. Both the
// publisher and the consumer call it on their own channel, so startup order
// between the two does not matter.
func declareTopology(ch *amqp.Channel, cfg config.RabbitConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return err
	}
	return ch.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil)
}
