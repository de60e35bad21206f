package publishers

import (
	"time"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

// EventVideoIngested is emitted once per record a run wrote.
const EventVideoIngested = "video.ingested"

// Event represents the payload published downstream.
type Event struct {
	Type        string             `json:"type"`
	RunID       string             `json:"run_id"`
	Strategy    string             `json:"strategy"`
	Video       domain.VideoRecord `json:"video"`
	CollectedAt time.Time          `json:"collected_at"`
}

// NewEvent constructs a video.ingested Event for one written record.
func NewEvent(runID, strategy string, video domain.VideoRecord) Event {
	return Event{
		Type:        EventVideoIngested,
		RunID:       runID,
		Strategy:    strategy,
		Video:       video,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing hints queue sinks attach next to the JSON body.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_type":  e.Type,
		"strategy":    e.Strategy,
		"external_id": e.Video.ExternalID,
	}
}
