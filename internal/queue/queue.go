// Package queue defines interfaces for message queue operations used to hand
// rainout notifications from the polling run to delivery workers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// HeaderType names the notification kind carried by a message.
const HeaderType = "type"

// Message represents a message in the queue.
type Message struct {
	// Key is the partition key; messages for one tenant and zip share it and
	// stay ordered.
	Key []byte

	// Value is the JSON payload.
	Value []byte

	// Headers contains optional metadata.
	Headers map[string]string
}

// NewJSONMessage encodes payload into a message of the given kind.
func NewJSONMessage(key, kind string, payload any) (*Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}
	return &Message{
		Key:     []byte(key),
		Value:   value,
		Headers: map[string]string{HeaderType: kind},
	}, nil
}

// Type returns the notification kind header.
func (m *Message) Type() string {
	return m.Headers[HeaderType]
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	if err := json.Unmarshal(m.Value, v); err != nil {
		return fmt.Errorf("failed to decode %s message: %w", m.Type(), err)
	}
	return nil
}

// Producer defines the interface for publishing messages to a queue.
// Implementations must be safe for concurrent use.
type Producer interface {
	// Publish sends a message. Messages with the same key are delivered
	// in publish order.
	Publish(ctx context.Context, msg *Message) error

	// Close releases any resources held by the producer.
	Close() error
}

// MessageHandler is a callback function for processing consumed messages.
// Return an error to indicate processing failure (implementation may retry).
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer defines the interface for consuming messages from a queue.
type Consumer interface {
	// Start consumes messages and calls the handler for each one until the
	// context is canceled or the queue is closed.
	Start(ctx context.Context, handler MessageHandler) error

	// Close stops consuming and releases any resources.
	Close() error
}
