// Package natsutil provides typed JSON publish/subscribe helpers over NATS
// with OpenTelemetry trace propagation through message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts nats.Msg headers for the OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publish serializes v as JSON and publishes it to subject. Trace context
// from ctx travels in the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natsutil: marshal for %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return nc.PublishMsg(msg)
}

// Subscribe registers a handler for JSON messages of type T on subject. The
// handler context carries any trace extracted from the message headers.
// Malformed messages are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			return
		}
		ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
		handler(ctx, v)
	})
}
