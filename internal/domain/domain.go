package domain

import "time"

// Inspection statuses recorded by the quality process.
const (
	StatusPass    = "Pass"
	StatusFail    = "Fail"
	StatusOffered = "Offered"
)

// Snapshot is one imported project dataset. Reports always run against a
// single snapshot; its rows are never mutated after import.
type Snapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	ProjectID   string `json:"project_id"`
	Tasks       int    `json:"tasks"`
	SeriesDays  int    `json:"series_days"`
	Inspections int    `json:"inspections"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// InspectionEvent is one quality-inspection record for a component at an
// ITP checkpoint. Events for a component key are interpreted in
// non-decreasing InspectedAt order; the engine sorts rather than trusting
// input order.
type InspectionEvent struct {
	ComponentKey string    `json:"component_key"`
	StepID       string    `json:"step_id"`
	InspectedAt  time.Time `json:"inspected_at" format:"date-time"`
	Status       string    `json:"status" enum:"Pass,Fail,Offered"`
}

// ResponseTimeEvent measures the elapsed time from a failed inspection to
// the next inspection of the same component, whatever its outcome.
type ResponseTimeEvent struct {
	ComponentKey      string    `json:"component_key"`
	StepID            string    `json:"step_id"`
	FailureDate       time.Time `json:"failure_date" format:"date-time"`
	ResponseTimeHours float64   `json:"response_time_hours"`
	ResponseTimeDays  float64   `json:"response_time_days"`
	NextStatus        string    `json:"next_status" enum:"Pass,Fail,Offered"`
}

// ReworkCycle measures a failure through to its first subsequent Pass.
// TotalAttempts is always IntermediateInspections + 1.
type ReworkCycle struct {
	ComponentKey            string    `json:"component_key"`
	StepID                  string    `json:"step_id"`
	FailureDate             time.Time `json:"failure_date" format:"date-time"`
	ResolutionDate          time.Time `json:"resolution_date" format:"date-time"`
	ReworkTimeHours         float64   `json:"rework_time_hours"`
	ReworkTimeDays          float64   `json:"rework_time_days"`
	IntermediateInspections int       `json:"intermediate_inspections"`
	TotalAttempts           int       `json:"total_attempts"`
}

// StepPerformance is the pass/fail record of one ITP step. Offered events
// count toward TotalInspections but are neither passes nor failures.
type StepPerformance struct {
	StepID           string  `json:"step_id"`
	TotalInspections int     `json:"total_inspections"`
	Passes           int     `json:"passes"`
	Failures         int     `json:"failures"`
	PassRate         float64 `json:"pass_rate"`
	FailureRate      float64 `json:"failure_rate"`
}

// TemporalSummary aggregates the derived temporal datasets. All averages
// are 0 when their source collection is empty.
type TemporalSummary struct {
	ResponseEvents             int     `json:"response_events"`
	ReworkCycles               int     `json:"rework_cycles"`
	UnresolvedFailures         int     `json:"unresolved_failures"`
	AvgResponseTimeHours       float64 `json:"avg_response_time_hours"`
	AvgResponseTimeDays        float64 `json:"avg_response_time_days"`
	AvgReworkTimeDays          float64 `json:"avg_rework_time_days"`
	TotalQualityDelayHours     float64 `json:"total_quality_delay_hours"`
	TotalQualityDelayDays      float64 `json:"total_quality_delay_days"`
	QualityDelayPctOfProject   float64 `json:"quality_delay_pct_of_project"`
	FirstTimeReworkSuccessRate float64 `json:"first_time_rework_success_rate"`
}

// StatusBreakdown counts inspection outcomes across the whole log.
// PassOfOfferedRate is passes relative to offered inspections, 0 when
// nothing was offered.
type StatusBreakdown struct {
	TotalInspections  int     `json:"total_inspections"`
	Passes            int     `json:"passes"`
	Failures          int     `json:"failures"`
	Offered           int     `json:"offered"`
	PassOfOfferedRate float64 `json:"pass_of_offered_rate"`
}

// DailyStatusCount is one point of the quality timeline: how many events of
// one status fell on one calendar date.
type DailyStatusCount struct {
	Date   string `json:"date" format:"date"`
	Status string `json:"status" enum:"Pass,Fail,Offered"`
	Count  int    `json:"count"`
}

// TaskProgressRecord is one task row of the imported progress table.
type TaskProgressRecord struct {
	ComponentKey           string     `json:"component_key"`
	StepID                 string     `json:"step_id"`
	OfferedDate            time.Time  `json:"offered_date" format:"date-time"`
	PassDate               *time.Time `json:"pass_date,omitempty" format:"date-time"`
	FailureCount           int        `json:"failure_count"`
	PlannedValue           float64    `json:"planned_value"`
	EarnedValueTraditional float64    `json:"earned_value_traditional"`
	EarnedValueQuality     float64    `json:"earned_value_quality_gated"`
	ActualCost             float64    `json:"actual_cost"`
	ReworkCost             float64    `json:"rework_cost"`
	FinalStatus            string     `json:"final_status"`
}

// DurationDays returns passDate - offeredDate in whole days, nil while the
// task has not passed.
func (t TaskProgressRecord) DurationDays() *int {
	if t.PassDate == nil {
		return nil
	}
	d := int(t.PassDate.Sub(t.OfferedDate).Hours() / 24)
	return &d
}

// TimeSeriesPoint is one date of the project-level cumulative series.
type TimeSeriesPoint struct {
	Date                   time.Time `json:"date" format:"date"`
	PlannedValue           float64   `json:"planned_value"`
	EarnedValueTraditional float64   `json:"earned_value_traditional"`
	EarnedValueQuality     float64   `json:"earned_value_quality_gated"`
	ActualCost             float64   `json:"actual_cost"`
}

// TimeSeriesDerived is a TimeSeriesPoint with variance and index columns
// computed into a fresh value. Index ratios are nil when their denominator
// is zero for that date.
type TimeSeriesDerived struct {
	Date                   time.Time `json:"date" format:"date"`
	PlannedValue           float64   `json:"planned_value"`
	EarnedValueTraditional float64   `json:"earned_value_traditional"`
	EarnedValueQuality     float64   `json:"earned_value_quality_gated"`
	ActualCost             float64   `json:"actual_cost"`
	ScheduleVariance       float64   `json:"schedule_variance"`
	CostVariance           float64   `json:"cost_variance"`
	SPITraditional         *float64  `json:"spi_traditional,omitempty"`
	SPIQuality             *float64  `json:"spi_quality,omitempty"`
	CPI                    *float64  `json:"cpi,omitempty"`
}

// ProjectScalarMetrics is the once-computed project-level reduction of the
// task-progress table. Index ratios fall back to 0 when a denominator is
// zero.
type ProjectScalarMetrics struct {
	TotalBudget            float64 `json:"total_budget"`
	TotalTasks             int     `json:"total_tasks"`
	EarnedValueTraditional float64 `json:"earned_value_traditional"`
	EarnedValueQuality     float64 `json:"earned_value_quality_gated"`
	ActualCost             float64 `json:"actual_cost"`
	ReworkCost             float64 `json:"rework_cost"`
	SPITraditional         float64 `json:"spi_traditional"`
	SPIQuality             float64 `json:"spi_quality"`
	CPITraditional         float64 `json:"cpi_traditional"`
	CPIQuality             float64 `json:"cpi_quality"`
	ScheduleVariance       float64 `json:"schedule_variance"`
	CostVariance           float64 `json:"cost_variance"`
	FailureRate            float64 `json:"failure_rate"`
	FirstTimeRightRate     float64 `json:"first_time_right_rate"`
	EVOverstatement        float64 `json:"ev_overstatement"`
	AverageTaskValue       float64 `json:"average_task_value"`
}

// StepTaskSummary rolls the task-progress table up per ITP step.
type StepTaskSummary struct {
	StepID             string  `json:"step_id"`
	Tasks              int     `json:"tasks"`
	PlannedValue       float64 `json:"planned_value"`
	EarnedValueQuality float64 `json:"earned_value_quality_gated"`
	ActualCost         float64 `json:"actual_cost"`
	ReworkCost         float64 `json:"rework_cost"`
	FailureCount       int     `json:"failure_count"`
}

// Scenario is one row of the improvement-simulation table. The four
// scenarios are fixed and ordered; Current always has zero savings.
type Scenario struct {
	Name          string  `json:"name"`
	ProjectedCost float64 `json:"projected_cost"`
	Savings       float64 `json:"savings"`
	SavingsPct    float64 `json:"savings_pct"`
	Description   string  `json:"description"`
	Effort        string  `json:"effort"`
}

// Event is one row of the append-only audit log.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
