package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestHeadersRoundTrip(t *testing.T) {
	headers := toHeaders(map[string]string{"type": "chat_update", "correlation_id": "run-1:t1:20176"})
	if len(headers) != 2 {
		t.Fatalf("toHeaders() len = %d, want 2", len(headers))
	}
	if headers[0].Key != "correlation_id" || headers[1].Key != "type" {
		t.Errorf("toHeaders() not sorted: %+v", headers)
	}

	msg := fromKafka(kafka.Message{Key: []byte("t1:20176"), Value: []byte(`{}`), Headers: headers})
	if msg.Type() != "chat_update" {
		t.Errorf("Type() = %q, want chat_update", msg.Type())
	}
	if string(msg.Key) != "t1:20176" {
		t.Errorf("Key = %q", msg.Key)
	}
}

func TestToHeaders_Empty(t *testing.T) {
	if toHeaders(nil) != nil {
		t.Error("toHeaders(nil) should be nil")
	}
}
