package engine_test

import (
	"testing"
	"time"

	"sitegate/internal/domain"
	"sitegate/internal/engine"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func evt(key, step string, at time.Time, status string) domain.InspectionEvent {
	return domain.InspectionEvent{ComponentKey: key, StepID: step, InspectedAt: at, Status: status}
}

func TestDeriveResponseTimesResolvedFailure(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("K1", "ITP-01", t0, domain.StatusOffered),
		evt("K1", "ITP-01", t0.Add(2*time.Hour), domain.StatusFail),
		evt("K1", "ITP-01", t0.Add(12*time.Hour), domain.StatusPass),
	}
	got := engine.DeriveResponseTimes(events)
	if len(got) != 1 {
		t.Fatalf("expected 1 response event, got %d", len(got))
	}
	r := got[0]
	if r.ComponentKey != "K1" || r.StepID != "ITP-01" {
		t.Fatalf("wrong identity: %+v", r)
	}
	if r.ResponseTimeHours != 10 {
		t.Fatalf("expected 10 response hours, got %v", r.ResponseTimeHours)
	}
	if r.ResponseTimeDays != 10.0/24 {
		t.Fatalf("expected %v response days, got %v", 10.0/24, r.ResponseTimeDays)
	}
	if r.NextStatus != domain.StatusPass {
		t.Fatalf("expected next status Pass, got %s", r.NextStatus)
	}
}

func TestDeriveReworkCyclesResolvedFailure(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("K1", "ITP-01", t0, domain.StatusOffered),
		evt("K1", "ITP-01", t0.Add(2*time.Hour), domain.StatusFail),
		evt("K1", "ITP-01", t0.Add(12*time.Hour), domain.StatusPass),
	}
	got := engine.DeriveReworkCycles(events)
	if len(got) != 1 {
		t.Fatalf("expected 1 rework cycle, got %d", len(got))
	}
	c := got[0]
	if c.ReworkTimeHours != 10 {
		t.Fatalf("expected 10 rework hours, got %v", c.ReworkTimeHours)
	}
	if c.IntermediateInspections != 0 || c.TotalAttempts != 1 {
		t.Fatalf("expected direct resolution, got intermediate=%d attempts=%d", c.IntermediateInspections, c.TotalAttempts)
	}
	if !c.ResolutionDate.Equal(t0.Add(12 * time.Hour)) {
		t.Fatalf("wrong resolution date: %v", c.ResolutionDate)
	}
}

func TestUnresolvedFailureExcluded(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("K2", "ITP-02", t0.Add(time.Hour), domain.StatusFail),
	}
	if got := engine.DeriveResponseTimes(events); len(got) != 0 {
		t.Fatalf("expected no response events, got %d", len(got))
	}
	if got := engine.DeriveReworkCycles(events); len(got) != 0 {
		t.Fatalf("expected no rework cycles, got %d", len(got))
	}
	sum := engine.ComputeTemporalSummary(events, 16)
	if sum.UnresolvedFailures != 1 {
		t.Fatalf("expected 1 unresolved failure, got %d", sum.UnresolvedFailures)
	}
}

func TestReworkCycleCountsIntermediateInspections(t *testing.T) {
	// Fail, then a second Fail before the resolving Pass.
	events := []domain.InspectionEvent{
		evt("K3", "ITP-01", t0, domain.StatusFail),
		evt("K3", "ITP-01", t0.Add(4*time.Hour), domain.StatusFail),
		evt("K3", "ITP-01", t0.Add(9*time.Hour), domain.StatusPass),
	}
	responses := engine.DeriveResponseTimes(events)
	if len(responses) != 2 {
		t.Fatalf("expected 2 response events, got %d", len(responses))
	}
	if responses[0].NextStatus != domain.StatusFail {
		t.Fatalf("first failure's next event should be the second Fail, got %s", responses[0].NextStatus)
	}

	cycles := engine.DeriveReworkCycles(events)
	if len(cycles) != 2 {
		t.Fatalf("expected 2 rework cycles, got %d", len(cycles))
	}
	first := cycles[0]
	if first.IntermediateInspections != 1 || first.TotalAttempts != 2 {
		t.Fatalf("expected one detour for the first failure, got intermediate=%d attempts=%d",
			first.IntermediateInspections, first.TotalAttempts)
	}
	second := cycles[1]
	if second.IntermediateInspections != 0 || second.TotalAttempts != 1 {
		t.Fatalf("expected direct resolution for the second failure, got intermediate=%d attempts=%d",
			second.IntermediateInspections, second.TotalAttempts)
	}
}

func TestDerivedCollectionBounds(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("A", "ITP-01", t0, domain.StatusFail),
		evt("A", "ITP-01", t0.Add(3*time.Hour), domain.StatusOffered),
		evt("B", "ITP-02", t0.Add(time.Hour), domain.StatusFail),
		evt("B", "ITP-02", t0.Add(5*time.Hour), domain.StatusPass),
		evt("C", "ITP-02", t0.Add(2*time.Hour), domain.StatusFail),
	}
	failures := 3
	responses := engine.DeriveResponseTimes(events)
	cycles := engine.DeriveReworkCycles(events)
	if len(responses) > failures {
		t.Fatalf("response events %d exceed failures %d", len(responses), failures)
	}
	if len(cycles) > len(responses) {
		t.Fatalf("rework cycles %d exceed response events %d", len(cycles), len(responses))
	}
	// A resolved by Offered (response only), B by Pass (both), C unresolved.
	if len(responses) != 2 || len(cycles) != 1 {
		t.Fatalf("expected 2 responses and 1 cycle, got %d and %d", len(responses), len(cycles))
	}
	for _, c := range cycles {
		if c.IntermediateInspections < 0 || c.TotalAttempts != c.IntermediateInspections+1 {
			t.Fatalf("attempt invariant violated: %+v", c)
		}
	}
}

func TestDeriveHandlesUnsortedInput(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("K1", "ITP-01", t0.Add(12*time.Hour), domain.StatusPass),
		evt("K1", "ITP-01", t0.Add(2*time.Hour), domain.StatusFail),
		evt("K1", "ITP-01", t0, domain.StatusOffered),
	}
	got := engine.DeriveResponseTimes(events)
	if len(got) != 1 || got[0].ResponseTimeHours != 10 {
		t.Fatalf("unsorted input not normalized: %+v", got)
	}
}

func TestComputeStepPerformance(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("A", "ITP-02", t0, domain.StatusPass),
		evt("B", "ITP-02", t0.Add(time.Hour), domain.StatusPass),
		evt("C", "ITP-02", t0.Add(2*time.Hour), domain.StatusFail),
		evt("D", "ITP-01", t0.Add(3*time.Hour), domain.StatusOffered),
		evt("D", "ITP-01", t0.Add(4*time.Hour), domain.StatusPass),
	}
	got := engine.ComputeStepPerformance(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(got))
	}
	if got[0].StepID != "ITP-01" || got[1].StepID != "ITP-02" {
		t.Fatalf("steps not ordered: %+v", got)
	}
	s1 := got[0]
	if s1.TotalInspections != 2 || s1.Passes != 1 || s1.Failures != 0 {
		t.Fatalf("ITP-01 counts wrong: %+v", s1)
	}
	if s1.PassRate != 50.0 {
		t.Fatalf("ITP-01 pass rate: got %v", s1.PassRate)
	}
	// Offered keeps pass+fail below total.
	if s1.PassRate+s1.FailureRate >= 100 {
		t.Fatalf("ITP-01 rates should not reach 100 with an Offered event: %+v", s1)
	}
	s2 := got[1]
	if s2.PassRate != 66.7 || s2.FailureRate != 33.3 {
		t.Fatalf("ITP-02 rates: got pass=%v fail=%v", s2.PassRate, s2.FailureRate)
	}
	if s2.Passes+s2.Failures > s2.TotalInspections {
		t.Fatalf("count invariant violated: %+v", s2)
	}
}

func TestComputeStatusBreakdown(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("A", "ITP-01", t0, domain.StatusOffered),
		evt("A", "ITP-01", t0.Add(time.Hour), domain.StatusPass),
		evt("B", "ITP-01", t0.Add(2*time.Hour), domain.StatusOffered),
		evt("B", "ITP-01", t0.Add(3*time.Hour), domain.StatusFail),
	}
	b := engine.ComputeStatusBreakdown(events)
	if b.TotalInspections != 4 || b.Passes != 1 || b.Failures != 1 || b.Offered != 2 {
		t.Fatalf("breakdown wrong: %+v", b)
	}
	if b.PassOfOfferedRate != 50.0 {
		t.Fatalf("pass-of-offered: got %v", b.PassOfOfferedRate)
	}
	if empty := engine.ComputeStatusBreakdown(nil); empty.PassOfOfferedRate != 0 {
		t.Fatalf("empty log should not divide: %+v", empty)
	}
}

func TestComputeDailyStatusCounts(t *testing.T) {
	day1 := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)
	events := []domain.InspectionEvent{
		evt("A", "ITP-01", day1, domain.StatusPass),
		evt("B", "ITP-01", day1, domain.StatusPass),
		evt("C", "ITP-01", day2, domain.StatusFail),
	}
	got := engine.ComputeDailyStatusCounts(events)
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Date != "2024-03-01" || got[0].Status != domain.StatusPass || got[0].Count != 2 {
		t.Fatalf("first row wrong: %+v", got[0])
	}
	if got[1].Date != "2024-03-02" || got[1].Status != domain.StatusFail || got[1].Count != 1 {
		t.Fatalf("second row wrong: %+v", got[1])
	}
}

func TestComputeTemporalSummary(t *testing.T) {
	events := []domain.InspectionEvent{
		evt("K1", "ITP-01", t0, domain.StatusFail),
		evt("K1", "ITP-01", t0.Add(12*time.Hour), domain.StatusPass),
		evt("K2", "ITP-01", t0.Add(time.Hour), domain.StatusFail),
		evt("K2", "ITP-01", t0.Add(25*time.Hour), domain.StatusPass),
	}
	sum := engine.ComputeTemporalSummary(events, 16)
	if sum.ResponseEvents != 2 || sum.ReworkCycles != 2 || sum.UnresolvedFailures != 0 {
		t.Fatalf("counts wrong: %+v", sum)
	}
	if sum.AvgResponseTimeHours != 18 {
		t.Fatalf("avg response hours: got %v", sum.AvgResponseTimeHours)
	}
	if sum.TotalQualityDelayHours != 36 {
		t.Fatalf("total delay hours: got %v", sum.TotalQualityDelayHours)
	}
	if sum.TotalQualityDelayDays != 1.5 {
		t.Fatalf("total delay days: got %v", sum.TotalQualityDelayDays)
	}
	if sum.QualityDelayPctOfProject != 1.5/16*100 {
		t.Fatalf("delay pct: got %v", sum.QualityDelayPctOfProject)
	}
	if sum.FirstTimeReworkSuccessRate != 100 {
		t.Fatalf("first-time rework rate: got %v", sum.FirstTimeReworkSuccessRate)
	}
}

func TestComputeTemporalSummaryEmpty(t *testing.T) {
	sum := engine.ComputeTemporalSummary(nil, 16)
	if sum != (domain.TemporalSummary{}) {
		t.Fatalf("empty log should yield zero summary: %+v", sum)
	}
}
