package domain

import "time"

type AnalyticsEventKind string

const (
	AnalyticsEventImpression AnalyticsEventKind = "impression"
	AnalyticsEventClick      AnalyticsEventKind = "click"
	AnalyticsEventView       AnalyticsEventKind = "view"
	AnalyticsEventConversion AnalyticsEventKind = "conversion"
	AnalyticsEventDismissal  AnalyticsEventKind = "dismissal"
)

// AnalyticsEvent is one viewer-side ad interaction. Extra carries
// kind-specific fields (e.g. click source, view duration) that don't
// warrant their own struct per kind.
type AnalyticsEvent struct {
	Kind       AnalyticsEventKind `json:"kind"`
	AdID       string             `json:"adId"`
	VideoID    string             `json:"videoId"`
	ShowName   string             `json:"showName"`
	Product    string             `json:"product"`
	Company    string             `json:"company"`
	AdPosition *float64           `json:"adPosition,omitempty"`
	UserID     string             `json:"userId,omitempty"`
	Timestamp  time.Time          `json:"timestamp"`
	Extra      map[string]any     `json:"extra,omitempty"`
}
