// Package analytics implements the Event Sink: it accepts viewer-side ad
// interaction events, stamps the timestamp if the caller left it empty, and
// logs them. The user id is set by the HTTP layer from the auth context.
// Persistence is out of scope for now.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"adpipeline/internal/domain"
	"adpipeline/internal/metrics"
)

// Sink is the default EventSink: it logs every accepted event and always
// succeeds.
type Sink struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func New(logger *slog.Logger) *Sink {
	return &Sink{Logger: logger, Now: time.Now}
}

func (s *Sink) Record(ctx context.Context, event domain.AnalyticsEvent) (string, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now()
	}

	eventID := fmt.Sprintf("%s_%s_%d", event.Kind, event.AdID, event.Timestamp.Unix())
	metrics.AnalyticsEventsTotal.WithLabelValues(string(event.Kind)).Inc()

	// TODO: persist to a durable event store; for now this is log-only.
	s.Logger.Info("analytics event",
		slog.String("event_id", eventID),
		slog.String("kind", string(event.Kind)),
		slog.String("ad_id", event.AdID),
		slog.String("video_id", event.VideoID),
		slog.String("show_name", event.ShowName),
		slog.String("product", event.Product),
		slog.String("company", event.Company),
		slog.String("user_id", event.UserID),
	)

	return eventID, nil
}
