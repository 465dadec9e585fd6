// Package queue defines the payloads exchanged over the message broker
// and the consumer that delivers outbound email.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// EmailQueueName is the default durable queue for outbound email.
const EmailQueueName = "email.outbound"

// EmailRequestedEvent is published whenever a notification should also
// reach the recipient by email.  The consumer owns delivery; producers
// never learn whether it succeeded.
type EmailRequestedEvent struct {
	ID          string `json:"id"`
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	RequestedAt string `json:"requested_at"`
}

// NewEmailRequestedEvent stamps a fresh id and request time.
func NewEmailRequestedEvent(to, subject, body string) EmailRequestedEvent {
	return EmailRequestedEvent{
		ID:          uuid.NewString(),
		To:          to,
		Subject:     subject,
		Body:        body,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
