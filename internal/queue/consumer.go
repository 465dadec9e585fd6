package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Mailer delivers one email job.
type Mailer interface {
	Deliver(ctx context.Context, ev EmailRequestedEvent) error
}

// FileMailer appends each email to a local file, one line per job.  It
// stands in for an SMTP relay in development.
type FileMailer struct {
	Path string
	mu   sync.Mutex
}

func (m *FileMailer) Deliver(_ context.Context, ev EmailRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(m.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(m.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open email log: %w", err)
	}
	defer f.Close()
	body := strings.ReplaceAll(ev.Body, "\n", " ")
	line := fmt.Sprintf("[%s] email id=%s | to=%s | subject=%q | body=%q\n", ev.RequestedAt, ev.ID, ev.To, ev.Subject, body)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write email log: %w", err)
	}
	return nil
}

// StartEmailConsumer consumes queueName until ctx is cancelled,
// reconnecting with exponential backoff whenever the broker goes away.
// Jobs that fail are rejected without requeue so one bad message cannot
// spin the loop.
func StartEmailConsumer(ctx context.Context, url, queueName string, mailer Mailer) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("email-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, queueName, mailer)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("email-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, mailer Mailer) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("email-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(ctx, d.Body, mailer); err != nil {
				log.Printf("email-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(ctx context.Context, body []byte, mailer Mailer) error {
	var ev EmailRequestedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.To == "" {
		return errors.New("missing recipient")
	}
	return mailer.Deliver(ctx, ev)
}
