package server

import (
	"encoding/json"

	"pairwise/internal/domain"
)

// Request payloads

type CreateGroupRequest struct {
	SupervisorParticipates *bool `json:"supervisor_participates,omitempty"`
}

type SetSupervisorRequest struct {
	Participates bool `json:"participates"`
}

type JoinGroupRequest struct {
	Name string `json:"name,omitempty" maxLength:"80"`
}

type RunRoundRequest struct {
	Content  bool   `json:"content,omitempty" doc:"Dispense one prompt per pair"`
	Category string `json:"category,omitempty"`
}

type ImportGroupRequest struct {
	State                  json.RawMessage `json:"state" doc:"Record returned by GET /groups/{token}/state"`
	SupervisorParticipates bool            `json:"supervisor_participates,omitempty"`
}

type AddContentRequest struct {
	Text string   `json:"text" minLength:"1"`
	Tags []string `json:"tags,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type GroupList struct {
	Items []domain.Group `json:"items"`
}

type RoundList struct {
	Items []domain.RoundResult `json:"items"`
}

type ContentList struct {
	Items []domain.ContentItem `json:"items"`
}

type ContentNextResponse struct {
	Scope    string `json:"scope"`
	Category string `json:"category,omitempty"`
	Text     string `json:"text"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	GroupToken string         `json:"group_token,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		GroupToken: e.GroupToken,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
