package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, Format: "json"})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithOrderID(ctx, "order-1")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"order_id":"order-1"`)) {
		t.Fatalf("expected order_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerRedactsPaymentCredentials(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	ctx := log.WithFields(context.Background(), map[string]any{
		"payment_method_token": "pm_card_visa",
		"client_secret":        "pi_123_secret_456",
		"intent_id":            "pi_123",
	})
	log.Info(ctx, "payment.confirm")

	out := buf.String()
	if bytes.Contains(buf.Bytes(), []byte("pm_card_visa")) || bytes.Contains(buf.Bytes(), []byte("secret_456")) {
		t.Fatalf("credential leaked into log: %s", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"intent_id":"pi_123"`)) {
		t.Fatalf("expected non-sensitive field to be kept: %s", out)
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true, Format: "json"})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel("WARN"); lvl != zerolog.WarnLevel {
		t.Fatalf("expected warn level, got %v", lvl)
	}
}

func TestLoggerFieldsStayOnDerivedContext(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf, Format: "json"})

	parent := log.WithField(context.Background(), "job", "expire-orders")
	_ = log.WithOrderID(parent, "order-9")
	log.Info(parent, "tick")

	if bytes.Contains(buf.Bytes(), []byte("order-9")) {
		t.Fatalf("child field leaked into parent: %s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"job":"expire-orders"`)) {
		t.Fatalf("expected parent field: %s", buf.String())
	}
}
