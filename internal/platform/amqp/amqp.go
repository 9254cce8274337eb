// Package amqp opens RabbitMQ connections.
package amqp

import (
	"fmt"

	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/jardisPsr/foundation/internal/platform/config"
)

// Dial opens a connection, or returns nil when no URL is configured.
func Dial(cfg config.AMQPConfig) (*amqp091.Connection, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	conn, err := amqp091.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	return conn, nil
}
