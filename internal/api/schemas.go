package api

import (
	"time"

	"github.com/fieldside/tagd/internal/events"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Events  int    `json:"events"`
	Time    int64  `json:"time"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

type CreateEventRequest struct {
	TimestampS *float64 `json:"timestamp_s"`
	Label      string   `json:"label"`
	Note       string   `json:"note"`
	MatchID    string   `json:"match_id"`
	Player     string   `json:"player"`
	Severity   int      `json:"severity"`
}

type EventResponse struct {
	ID         string  `json:"id"`
	TimestampS float64 `json:"timestamp_s"`
	Label      string  `json:"label"`
	Note       string  `json:"note"`
	MatchID    string  `json:"match_id"`
	Player     string  `json:"player"`
	Severity   int     `json:"severity"`
	CreatedAt  string  `json:"created_at"`
}

type DeleteResponse struct {
	OK bool `json:"ok"`
}

type ExtractRequest struct {
	Source string   `json:"source"`
	Pre    *float64 `json:"pre"`
	Post   *float64 `json:"post"`
}

type ExtractResponse struct {
	OutDir string   `json:"outDir"`
	Clips  []string `json:"clips"`
}

type UploadResponse struct {
	File string `json:"file"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func EventToResponse(e *events.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TimestampS: e.TimestampS,
		Label:      e.Label,
		Note:       e.Note,
		MatchID:    e.MatchID,
		Player:     e.Player,
		Severity:   e.Severity,
		CreatedAt:  e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
