package handlerwrapper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type ping struct {
	Name string `json:"name"`
}

type pong struct {
	Greeting string `json:"greeting"`
}

func TestWrapTransformingTyped(t *testing.T) {
	tracer := noop.NewTracerProvider().Tracer("test")

	tests := []struct {
		name      string
		body      []byte
		metadata  map[string]string
		handler   func(context.Context, *ping) ([]Result, error)
		wantErr   bool
		wantCount int
		check     func(t *testing.T, out []*message.Message)
	}{
		{
			name: "encodes results with routing metadata",
			body: []byte(`{"name":"rem"}`),
			metadata: map[string]string{
				MetadataCorrelationID: "corr-1",
			},
			handler: func(ctx context.Context, p *ping) ([]Result, error) {
				assert.Equal(t, "corr-1", attr.CorrelationID(ctx))
				return []Result{{
					Topic:    "out.v1",
					Payload:  pong{Greeting: "hi " + p.Name},
					Metadata: map[string]string{"extra": "1"},
				}}, nil
			},
			wantCount: 1,
			check: func(t *testing.T, out []*message.Message) {
				m := out[0]
				assert.Equal(t, "out.v1", m.Metadata.Get(MetadataTopic))
				assert.Equal(t, "corr-1", m.Metadata.Get(MetadataCorrelationID))
				assert.Equal(t, "test.handler", m.Metadata.Get(MetadataHandlerName))
				assert.Equal(t, "1", m.Metadata.Get("extra"))
				var got pong
				require.NoError(t, json.Unmarshal(m.Payload, &got))
				assert.Equal(t, "hi rem", got.Greeting)
			},
		},
		{
			name: "falls back to message uuid for correlation and passes reply_to",
			body: []byte(`{"name":"ram"}`),
			metadata: map[string]string{
				MetadataReplyTo: "reply.topic",
			},
			handler: func(ctx context.Context, p *ping) ([]Result, error) {
				assert.Equal(t, "msg-uuid", attr.CorrelationID(ctx))
				assert.Equal(t, "reply.topic", ctx.Value(CtxKeyReplyTo))
				return nil, nil
			},
			wantCount: 0,
		},
		{
			name: "undecodable payload is acked without calling the handler",
			body: []byte(`{not json`),
			handler: func(ctx context.Context, p *ping) ([]Result, error) {
				t.Fatal("handler must not be called")
				return nil, nil
			},
			wantCount: 0,
		},
		{
			name: "handler error nacks",
			body: []byte(`{"name":"x"}`),
			handler: func(ctx context.Context, p *ping) ([]Result, error) {
				return nil, errors.New("db down")
			},
			wantErr: true,
		},
		{
			name: "result without topic is an error",
			body: []byte(`{"name":"x"}`),
			handler: func(ctx context.Context, p *ping) ([]Result, error) {
				return []Result{{Payload: pong{}}}, nil
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := message.NewMessage("msg-uuid", tt.body)
			for k, v := range tt.metadata {
				msg.Metadata.Set(k, v)
			}

			fn := WrapTransformingTyped("test.handler", slog.Default(), tracer, nil, tt.handler)
			out, err := fn(msg)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, out, tt.wantCount)
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}
