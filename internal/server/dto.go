package server

import (
	"encoding/json"

	"stageline/internal/domain"
	"stageline/internal/tcr"
)

// Request payloads

type MoveRequest struct {
	Stage string `json:"stage" example:"in-progress"`
}

type SpecStatusRequest struct {
	Status string `json:"status" example:"in-review"`
}

// Response payloads

type IssueResponse struct {
	Name     string            `json:"name"`
	Stage    string            `json:"stage"`
	Type     string            `json:"type"`
	Title    string            `json:"title"`
	Created  string            `json:"created"`
	Owner    *string           `json:"owner,omitempty"`
	RemoteID *string           `json:"remote_id,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Body     string            `json:"body"`
	Updated  string            `json:"updated_at" format:"date-time"`
}

type SpecResponse struct {
	Issue        string   `json:"issue"`
	Name         string   `json:"name"`
	Status       string   `json:"status" enum:"pending,in-progress,in-review,completed"`
	Created      string   `json:"created"`
	Completed    *string  `json:"completed,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	ReviewRound  int      `json:"review_round"`
	Updated      string   `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload" jsonschema:"type=object,additionalProperties=true"`
}

type PaginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type TCRStateResponse struct {
	Gate           string `json:"gate" enum:"armed,blocked"`
	RunID          string `json:"run_id,omitempty"`
	LastOutcome    string `json:"last_outcome,omitempty"`
	FailureStreak  int    `json:"failure_streak"`
	LastStepName   string `json:"last_step_name,omitempty"`
	LastCommit     string `json:"last_commit,omitempty"`
	LastFullOutput string `json:"last_full_output,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

func issueResponse(i domain.Issue) IssueResponse {
	return IssueResponse{
		Name:     i.Name,
		Stage:    string(i.Stage),
		Type:     string(i.Type),
		Title:    i.Title,
		Created:  i.Created,
		Owner:    optional(i.Owner),
		RemoteID: optional(i.RemoteID),
		Extra:    i.Extra,
		Body:     i.Body,
		Updated:  i.UpdatedAt,
	}
}

func specResponse(s domain.Spec) SpecResponse {
	return SpecResponse{
		Issue:        s.Issue,
		Name:         s.Name,
		Status:       string(s.Status),
		Created:      s.Created,
		Completed:    s.Completed,
		Dependencies: s.Dependencies,
		ReviewRound:  s.ReviewRound,
		Updated:      s.UpdatedAt,
	}
}

func mapSpecs(specs []domain.Spec) []SpecResponse {
	out := make([]SpecResponse, 0, len(specs))
	for _, s := range specs {
		out = append(out, specResponse(s))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	payload := json.RawMessage(e.Payload)
	if !json.Valid(payload) {
		payload = json.RawMessage("{}")
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

// tcrStateResponse omits the captured output unless withOutput is set.
func tcrStateResponse(st tcr.RunState, withOutput bool) TCRStateResponse {
	resp := TCRStateResponse{
		Gate:          string(st.Gate()),
		RunID:         st.RunID,
		LastOutcome:   string(st.LastOutcome),
		FailureStreak: st.FailureStreak,
		LastStepName:  st.LastStepName,
		LastCommit:    st.LastCommit,
		UpdatedAt:     st.UpdatedAt,
	}
	if withOutput {
		resp.LastFullOutput = st.LastFullOutput
	}
	return resp
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
