package logger

import (
	"context"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/angelmondragon/storefront-backend/pkg/env"
)

const redactedValue = "[REDACTED]"

// sensitiveKeys never reach the log output with their raw value. Matching is
// by substring on the lower-cased field name.
var sensitiveKeys = []string{"card", "cvc", "cvv", "client_secret", "payment_method_token", "source_id", "nonce", "authorization", "password"}

type Options struct {
	ServiceName string
	Level       zerolog.Level
	// WarnStack attaches a stack trace to warnings as well as errors.
	WarnStack bool
	Output    io.Writer
	// Format is "json" or "console"; empty falls back to LOG_FORMAT.
	Format string
}

// Logger writes structured zerolog lines. Request-scoped fields ride on the
// context; a context without any logs through the base logger.
type Logger struct {
	base      zerolog.Logger
	warnStack bool
}

func New(opts Options) *Logger {
	level := opts.Level
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = env.Get("LOG_FORMAT", "json")
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	base := zerolog.New(out).Level(level).With().Timestamp().Str("service", opts.ServiceName).Logger()
	return &Logger{base: base, warnStack: opts.WarnStack}
}

// ParseLevel maps a textual level onto zerolog, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

type ctxKey struct{}

func (l *Logger) current(ctx context.Context) zerolog.Logger {
	if ctx != nil {
		if zl, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
			return zl
		}
	}
	return l.base
}

func (l *Logger) with(ctx context.Context, apply func(zerolog.Context) zerolog.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, apply(l.current(ctx).With()).Logger())
}

func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, Redact(key, value))
	})
}

func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	return l.with(ctx, func(c zerolog.Context) zerolog.Context {
		for k, v := range fields {
			c = c.Interface(k, Redact(k, v))
		}
		return c
	})
}

func (l *Logger) WithRequestID(ctx context.Context, requestID string) context.Context {
	return l.WithField(ctx, "request_id", requestID)
}

func (l *Logger) WithShopperID(ctx context.Context, shopperID string) context.Context {
	return l.WithField(ctx, "shopper_id", shopperID)
}

func (l *Logger) WithOrderID(ctx context.Context, orderID string) context.Context {
	return l.WithField(ctx, "order_id", orderID)
}

func (l *Logger) Debug(ctx context.Context, msg string) {
	zl := l.current(ctx)
	zl.Debug().Msg(msg)
}

func (l *Logger) Info(ctx context.Context, msg string) {
	zl := l.current(ctx)
	zl.Info().Msg(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string) {
	zl := l.current(ctx)
	event := zl.Warn()
	if l.warnStack {
		event = event.Str("stack", stackTrace())
	}
	event.Msg(msg)
}

// Error always carries a stack trace.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	zl := l.current(ctx)
	zl.Error().Err(err).Str("stack", stackTrace()).Msg(msg)
}

// Redact masks values stored under payment-credential keys.
func Redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lower, sensitive) {
			return redactedValue
		}
	}
	return value
}

func stackTrace() string {
	return strings.TrimSpace(string(debug.Stack()))
}
