package engine_test

import (
	"math"
	"testing"

	"sitegate/internal/config"
	"sitegate/internal/domain"
	"sitegate/internal/engine"
)

func TestBuildScenarios(t *testing.T) {
	metrics := domain.ProjectScalarMetrics{
		TotalBudget: 445245.20,
		ActualCost:  463245.20,
		ReworkCost:  18000,
	}
	sim := config.Simulation{
		TargetResponseDays:      0.25,
		ReferenceResponseDays:   4.1,
		CombinedSavingsFraction: 0.6,
		CombinedCostFraction:    0.4,
	}
	got := engine.BuildScenarios(metrics, sim)
	if len(got) != 4 {
		t.Fatalf("expected 4 scenarios, got %d", len(got))
	}
	names := []string{
		engine.ScenarioCurrent,
		engine.ScenarioPerfectQuality,
		engine.ScenarioImprovedResponse,
		engine.ScenarioCombined,
	}
	for i, name := range names {
		if got[i].Name != name {
			t.Fatalf("scenario %d: expected %s, got %s", i, name, got[i].Name)
		}
	}

	current := got[0]
	if current.Savings != 0 {
		t.Fatalf("current savings must be 0, got %v", current.Savings)
	}
	if current.ProjectedCost != metrics.ActualCost {
		t.Fatalf("current projected cost: got %v", current.ProjectedCost)
	}

	perfect := got[1]
	if perfect.Savings != metrics.ReworkCost {
		t.Fatalf("perfect quality savings: got %v", perfect.Savings)
	}
	if perfect.ProjectedCost != metrics.TotalBudget {
		t.Fatalf("perfect quality projected cost: got %v", perfect.ProjectedCost)
	}

	improved := got[2]
	wantImproved := 18000 * (1 - 0.25/4.1)
	if math.Abs(improved.Savings-wantImproved) > 1e-9 {
		t.Fatalf("improved response savings: want %v, got %v", wantImproved, improved.Savings)
	}

	combined := got[3]
	if combined.Savings != 0.6*metrics.ReworkCost {
		t.Fatalf("combined savings must be 0.6 of rework, got %v", combined.Savings)
	}

	for _, sc := range got {
		want := sc.Savings / metrics.ActualCost * 100
		if math.Abs(sc.SavingsPct-want) > 1e-9 {
			t.Fatalf("%s savings pct: want %v, got %v", sc.Name, want, sc.SavingsPct)
		}
	}
}

func TestBuildScenariosZeroActualCost(t *testing.T) {
	got := engine.BuildScenarios(domain.ProjectScalarMetrics{}, config.Default("p").Simulation)
	for _, sc := range got {
		if math.IsNaN(sc.SavingsPct) || math.IsInf(sc.SavingsPct, 0) {
			t.Fatalf("%s: savings pct should stay finite with zero actual cost", sc.Name)
		}
	}
}
