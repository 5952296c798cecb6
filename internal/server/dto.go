package server

import (
	"encoding/json"
	"time"

	"sitegate/internal/domain"
	"sitegate/internal/engine"
)

// Response payloads. Derived report rows are served as computed by the
// engine; only rows needing extra presentation fields get a wrapper here.

type TaskResponse struct {
	ComponentKey           string     `json:"component_key"`
	StepID                 string     `json:"step_id"`
	OfferedDate            time.Time  `json:"offered_date" format:"date-time"`
	PassDate               *time.Time `json:"pass_date,omitempty" format:"date-time"`
	DurationDays           *int       `json:"duration_days,omitempty"`
	FailureCount           int        `json:"failure_count"`
	PlannedValue           float64    `json:"planned_value"`
	EarnedValueTraditional float64    `json:"earned_value_traditional"`
	EarnedValueQuality     float64    `json:"earned_value_quality_gated"`
	ActualCost             float64    `json:"actual_cost"`
	ReworkCost             float64    `json:"rework_cost"`
	FinalStatus            string     `json:"final_status"`
}

func taskResponse(t domain.TaskProgressRecord) TaskResponse {
	return TaskResponse{
		ComponentKey:           t.ComponentKey,
		StepID:                 t.StepID,
		OfferedDate:            t.OfferedDate,
		PassDate:               t.PassDate,
		DurationDays:           t.DurationDays(),
		FailureCount:           t.FailureCount,
		PlannedValue:           t.PlannedValue,
		EarnedValueTraditional: t.EarnedValueTraditional,
		EarnedValueQuality:     t.EarnedValueQuality,
		ActualCost:             t.ActualCost,
		ReworkCost:             t.ReworkCost,
		FinalStatus:            t.FinalStatus,
	}
}

func mapTasks(items []domain.TaskProgressRecord) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

// MetricsResponse pairs the scalar metrics with the budget context they
// were computed against.
type MetricsResponse struct {
	SnapshotID          string                      `json:"snapshot_id"`
	ProjectDurationDays int                         `json:"project_duration_days"`
	Metrics             domain.ProjectScalarMetrics `json:"metrics"`
}

type TemporalSummaryResponse struct {
	SnapshotID string                 `json:"snapshot_id"`
	Summary    domain.TemporalSummary `json:"summary"`
}

type StepsResponse struct {
	SnapshotID  string                   `json:"snapshot_id"`
	Performance []domain.StepPerformance `json:"performance"`
	Tasks       []domain.StepTaskSummary `json:"tasks"`
}

func stepsResponse(snapshotID string, rep engine.StepReport) StepsResponse {
	return StepsResponse{SnapshotID: snapshotID, Performance: rep.Performance, Tasks: rep.Tasks}
}

type QualityResponse struct {
	SnapshotID string                    `json:"snapshot_id"`
	Breakdown  domain.StatusBreakdown    `json:"breakdown"`
	Daily      []domain.DailyStatusCount `json:"daily"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	SnapshotID string         `json:"snapshot_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	var payload map[string]any
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		SnapshotID: e.SnapshotID,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    payload,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}
