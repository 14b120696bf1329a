// Package mq carries scan IDs between the API and the worker over a durable
// RabbitMQ queue. The queue is the startAnalysis entry point: the API
// publishes an ID, a worker picks it up and runs the pipeline.
package mq

import (
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"
)

const QueueName = "scan_jobs"

// Queue wraps one AMQP connection and channel. Unlike a dial-per-publish
// scheme, the connection is held for the process lifetime.
type Queue struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func Connect(url string) (*Queue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	_, err = ch.QueueDeclare(QueueName, true, false, false, false, nil)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &Queue{conn: conn, ch: ch}, nil
}

func (q *Queue) Close() {
	if q.ch != nil {
		q.ch.Close()
	}
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishScan enqueues a scan ID for a worker.
func (q *Queue) PublishScan(scanID uint) error {
	return q.ch.Publish("", QueueName, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Body:         []byte(strconv.FormatUint(uint64(scanID), 10)),
	})
}

// Consume hands back the delivery stream. prefetch bounds how many scans a
// worker holds unacked at once.
func (q *Queue) Consume(prefetch int) (<-chan amqp.Delivery, error) {
	if err := q.ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	msgs, err := q.ch.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("register consumer: %w", err)
	}
	return msgs, nil
}

// ParseScanID decodes a queue message body.
func ParseScanID(body []byte) (uint, error) {
	id, err := strconv.ParseUint(string(body), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad scan id %q: %w", body, err)
	}
	return uint(id), nil
}
