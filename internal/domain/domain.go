package domain

import (
	"fmt"
	"strings"
)

// Stage is a lifecycle stage an issue occupies.
type Stage string

const (
	StageBacklog    Stage = "backlog"
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in-progress"
	StageInReview   Stage = "in-review"
	StageDone       Stage = "done"
)

// Stages returns the canonical stage sequence.
func Stages() []Stage {
	return []Stage{StageBacklog, StageTodo, StageInProgress, StageInReview, StageDone}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", UsageError{Msg: fmt.Sprintf("invalid stage %q (valid: %s)", s, joinStages(Stages()))}
}

// Index returns the position of the stage in the canonical sequence, or -1.
func (s Stage) Index() int {
	for i, st := range Stages() {
		if st == s {
			return i
		}
	}
	return -1
}

func joinStages(stages []Stage) string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

type IssueType string

const (
	TypeFeature IssueType = "feature"
	TypeBug     IssueType = "bug"
	TypeTask    IssueType = "task"
)

// ParseIssueType validates an issue type.
func ParseIssueType(s string) (IssueType, error) {
	switch IssueType(s) {
	case TypeFeature, TypeBug, TypeTask:
		return IssueType(s), nil
	}
	return "", UsageError{Msg: fmt.Sprintf("invalid issue type %q (valid: feature, bug, task)", s)}
}

type Issue struct {
	Name      string            `json:"name"`
	Stage     Stage             `json:"stage"`
	Type      IssueType         `json:"type"`
	Title     string            `json:"title"`
	Created   string            `json:"created"`
	Owner     string            `json:"owner,omitempty"`
	RemoteID  string            `json:"remote_id,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
	Body      string            `json:"body,omitempty"`
	StageSeq  int64             `json:"-"`
	UpdatedAt string            `json:"updated_at"`
}

// Metadata returns the key->value header view of the issue.
func (i Issue) Metadata() map[string]string {
	meta := make(map[string]string, len(i.Extra)+7)
	for k, v := range i.Extra {
		meta[k] = v
	}
	meta["name"] = i.Name
	meta["stage"] = string(i.Stage)
	meta["type"] = string(i.Type)
	meta["title"] = i.Title
	meta["created"] = i.Created
	if i.Owner != "" {
		meta["owner"] = i.Owner
	}
	if i.RemoteID != "" {
		meta["remote_id"] = i.RemoteID
	}
	return meta
}

// IssueSummary is the listing view of an issue.
type IssueSummary struct {
	Name     string    `json:"name"`
	Stage    Stage     `json:"stage"`
	Type     IssueType `json:"type"`
	Title    string    `json:"title"`
	Created  string    `json:"created"`
	Owner    string    `json:"owner,omitempty"`
	RemoteID string    `json:"remote_id,omitempty"`
}

func (i Issue) Summary() IssueSummary {
	return IssueSummary{
		Name:     i.Name,
		Stage:    i.Stage,
		Type:     i.Type,
		Title:    i.Title,
		Created:  i.Created,
		Owner:    i.Owner,
		RemoteID: i.RemoteID,
	}
}

// StageGroup is one stage section of a listing.
type StageGroup struct {
	Stage  Stage          `json:"stage"`
	Issues []IssueSummary `json:"issues"`
}

type SpecStatus string

const (
	SpecPending    SpecStatus = "pending"
	SpecInProgress SpecStatus = "in-progress"
	SpecInReview   SpecStatus = "in-review"
	SpecCompleted  SpecStatus = "completed"
)

// SpecStatuses returns every spec status in lifecycle order.
func SpecStatuses() []SpecStatus {
	return []SpecStatus{SpecPending, SpecInProgress, SpecInReview, SpecCompleted}
}

// ParseSpecStatus validates a spec status name.
func ParseSpecStatus(s string) (SpecStatus, error) {
	for _, st := range SpecStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", UsageError{Msg: fmt.Sprintf("invalid spec status %q (valid: pending, in-progress, in-review, completed)", s)}
}

type Spec struct {
	Issue        string     `json:"issue"`
	Name         string     `json:"name"`
	Status       SpecStatus `json:"status"`
	Created      string     `json:"created"`
	Completed    *string    `json:"completed,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	ReviewRound  int        `json:"review_round"`
	Body         string     `json:"body,omitempty"`
	Position     int        `json:"-"`
	UpdatedAt    string     `json:"updated_at"`
}

// ValidationResult is the outcome of a validator or a whole chain.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing,omitempty"`
}

// Valid returns a passing result.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing result with the given reasons.
func Invalid(reasons ...string) ValidationResult {
	return ValidationResult{Valid: false, Missing: reasons}
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
