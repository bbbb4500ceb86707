package apihttp

import (
	"encoding/json"
	"net/http"
	"time"

	"adpipeline/internal/domain"
)

type analyticsEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"event_id"`
}

const (
	extraFieldClickSource     = "click_source"
	extraFieldViewDuration    = "view_duration"
	extraFieldConversionType  = "conversion_type"
	extraFieldConversionValue = "conversion_value"
)

// kindSpecificFields names which raw JSON keys are folded into Extra for
// each event kind.
var kindSpecificFields = map[domain.AnalyticsEventKind][]string{
	domain.AnalyticsEventClick:      {extraFieldClickSource},
	domain.AnalyticsEventView:       {extraFieldViewDuration},
	domain.AnalyticsEventConversion: {extraFieldConversionType, extraFieldConversionValue},
}

// handleAnalytics returns a handler bound to one of the five event kinds.
func (s *Server) handleAnalytics(kind domain.AnalyticsEventKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "POST required")
			return
		}

		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}

		event := domain.AnalyticsEvent{
			Kind:     kind,
			AdID:     stringField(raw, "ad_id"),
			VideoID:  stringField(raw, "video_id"),
			ShowName: stringField(raw, "show_name"),
			Product:  stringField(raw, "product"),
			Company:  stringField(raw, "company"),
		}
		if ts := stringField(raw, "timestamp"); ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				event.Timestamp = parsed
			}
		}
		if pos, ok := raw["ad_position"].(float64); ok {
			event.AdPosition = &pos
		}
		if id, ok := identityFromContext(r.Context()); ok {
			event.UserID = id.UserID
		}
		if fields, ok := kindSpecificFields[kind]; ok {
			extra := make(map[string]any, len(fields))
			for _, f := range fields {
				if v, present := raw[f]; present {
					extra[f] = v
				}
			}
			if len(extra) > 0 {
				event.Extra = extra
			}
		}

		eventID, err := s.events.Record(r.Context(), event)
		if err != nil {
			writeJobError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, analyticsEventResponse{Success: true, EventID: eventID})
	}
}

func stringField(raw map[string]any, key string) string {
	v, _ := raw[key].(string)
	return v
}
