package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/seatswap/internal/queue"
)

// QueueMailer is the EmailSender that hands jobs to RabbitMQ.  Each send
// dials, declares the durable queue and publishes a persistent message;
// email volume is low enough that no connection is kept.
type QueueMailer struct {
	URL   string
	Queue string
}

func NewQueueMailer(url, queue string) *QueueMailer {
	if queue == "" {
		queue = q.EmailQueueName
	}
	return &QueueMailer{URL: url, Queue: queue}
}

func (m *QueueMailer) Send(ctx context.Context, to, subject, body string) error {
	conn, err := amqp.Dial(m.URL)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(m.Queue, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	ev := q.NewEmailRequestedEvent(to, subject, body)
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    time.Now().UTC(),
		Body:         payload,
	}
	if err := ch.PublishWithContext(ctx, "", m.Queue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
