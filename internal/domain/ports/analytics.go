package ports

import (
	"context"

	"adpipeline/internal/domain"
)

// EventSink accepts viewer-side analytics events. Persistence is out of
// scope; the contract is that the event is durable by the time Record
// returns (buffer+flush or direct write is the implementor's choice).
type EventSink interface {
	Record(ctx context.Context, event domain.AnalyticsEvent) (eventID string, err error)
}
