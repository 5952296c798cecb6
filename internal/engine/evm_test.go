package engine_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"sitegate/internal/domain"
	"sitegate/internal/engine"
)

func task(step string, evTrad, evQual, ac, rework float64, failures int) domain.TaskProgressRecord {
	return domain.TaskProgressRecord{
		ComponentKey:           step + "-task",
		StepID:                 step,
		OfferedDate:            t0,
		FailureCount:           failures,
		PlannedValue:           evTrad,
		EarnedValueTraditional: evTrad,
		EarnedValueQuality:     evQual,
		ActualCost:             ac,
		ReworkCost:             rework,
		FinalStatus:            "Pass",
	}
}

func TestComputeScalarMetricsIndices(t *testing.T) {
	totalBudget := 445245.20
	tasks := []domain.TaskProgressRecord{
		task("ITP-01", 250000, 240000, 245000, 5000, 1),
		task("ITP-02", 195245.20, 200000, 205000, 13000, 2),
	}
	m := engine.ComputeScalarMetrics(tasks, totalBudget)

	if m.EarnedValueQuality != 440000 {
		t.Fatalf("EV quality sum: got %v", m.EarnedValueQuality)
	}
	if m.ActualCost != 450000 {
		t.Fatalf("AC sum: got %v", m.ActualCost)
	}
	if got := math.Round(m.SPIQuality*10000) / 10000; got != 0.9882 {
		t.Fatalf("SPI quality: got %v", got)
	}
	if got := math.Round(m.CPIQuality*10000) / 10000; got != 0.9778 {
		t.Fatalf("CPI quality: got %v", got)
	}
	if m.ScheduleVariance != 440000-totalBudget {
		t.Fatalf("schedule variance: got %v", m.ScheduleVariance)
	}
	if m.CostVariance != 440000-450000.0 {
		t.Fatalf("cost variance: got %v", m.CostVariance)
	}
	if m.EVOverstatement != math.Abs(m.EarnedValueTraditional-440000) {
		t.Fatalf("overstatement: got %v", m.EVOverstatement)
	}
	// 3 failure incidents over 2 tasks: the two rates measure different
	// things and do not sum to 100.
	if m.FailureRate != 150 {
		t.Fatalf("failure rate: got %v", m.FailureRate)
	}
	if m.FirstTimeRightRate != -50 {
		t.Fatalf("first-time-right rate: got %v", m.FirstTimeRightRate)
	}
	if m.AverageTaskValue != totalBudget/2 {
		t.Fatalf("avg task value: got %v", m.AverageTaskValue)
	}
}

func TestComputeScalarMetricsIdempotent(t *testing.T) {
	tasks := []domain.TaskProgressRecord{
		task("ITP-01", 1000, 900, 950, 50, 0),
		task("ITP-02", 2000, 2000, 2100, 100, 1),
	}
	first := engine.ComputeScalarMetrics(tasks, 3000)
	second := engine.ComputeScalarMetrics(tasks, 3000)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated computation differs:\n%+v\n%+v", first, second)
	}
}

func TestComputeScalarMetricsEmptyInput(t *testing.T) {
	m := engine.ComputeScalarMetrics(nil, 0)
	if m.SPIQuality != 0 || m.CPIQuality != 0 || m.FailureRate != 0 || m.AverageTaskValue != 0 {
		t.Fatalf("zero denominators should resolve to 0: %+v", m)
	}
	if math.IsNaN(m.SPITraditional) || math.IsNaN(m.CPITraditional) {
		t.Fatalf("NaN leaked: %+v", m)
	}
}

func TestComputeTimeSeriesDerived(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, 3, n, 0, 0, 0, 0, time.UTC) }
	series := []domain.TimeSeriesPoint{
		{Date: day(1), PlannedValue: 0, EarnedValueTraditional: 0, EarnedValueQuality: 0, ActualCost: 0},
		{Date: day(2), PlannedValue: 1000, EarnedValueTraditional: 900, EarnedValueQuality: 800, ActualCost: 850},
	}
	got := engine.ComputeTimeSeriesDerived(series)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	start := got[0]
	if start.SPITraditional != nil || start.SPIQuality != nil || start.CPI != nil {
		t.Fatalf("zero denominators should stay nil: %+v", start)
	}
	next := got[1]
	if next.SPITraditional == nil || *next.SPITraditional != 0.9 {
		t.Fatalf("SPI traditional: %+v", next.SPITraditional)
	}
	if next.SPIQuality == nil || *next.SPIQuality != 0.8 {
		t.Fatalf("SPI quality: %+v", next.SPIQuality)
	}
	if next.CPI == nil || *next.CPI != 800.0/850 {
		t.Fatalf("CPI: %+v", next.CPI)
	}
	if next.ScheduleVariance != -200 || next.CostVariance != -50 {
		t.Fatalf("variances: %+v", next)
	}
	// Input must stay untouched.
	if series[1].PlannedValue != 1000 {
		t.Fatalf("input mutated: %+v", series[1])
	}
}

func TestComputeStepTaskSummaries(t *testing.T) {
	tasks := []domain.TaskProgressRecord{
		task("ITP-02", 100, 90, 95, 5, 1),
		task("ITP-01", 200, 200, 210, 10, 0),
		task("ITP-02", 300, 280, 290, 15, 2),
	}
	got := engine.ComputeStepTaskSummaries(tasks)
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got))
	}
	if got[0].StepID != "ITP-01" || got[1].StepID != "ITP-02" {
		t.Fatalf("steps not ordered: %+v", got)
	}
	s := got[1]
	if s.Tasks != 2 || s.PlannedValue != 400 || s.EarnedValueQuality != 370 || s.ReworkCost != 20 || s.FailureCount != 3 {
		t.Fatalf("ITP-02 rollup wrong: %+v", s)
	}
}
