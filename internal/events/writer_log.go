package events

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"
)

// LogWriter writes events to the process log. It is the sink until a broker is configured.
type LogWriter struct{}

func (LogWriter) Write(_ context.Context, topic string, e cloudevents.Event) error {
	zap.S().Named("event_writer").Infow("event published",
		"topic", topic,
		"type", e.Type(),
		"id", e.ID(),
		"source", e.Source(),
		"data", string(e.Data()))
	return nil
}

func (LogWriter) Close(_ context.Context) error {
	return nil
}
