package engine

import (
	"fmt"

	"sitegate/internal/config"
	"sitegate/internal/domain"
)

// Scenario names, in output order.
const (
	ScenarioCurrent          = "Current"
	ScenarioPerfectQuality   = "Perfect Quality"
	ScenarioImprovedResponse = "Improved Response"
	ScenarioCombined         = "Combined"
)

// BuildScenarios produces the four improvement projections. These are
// closed-form what-ifs, not simulations: no randomness, no iteration.
// Savings percentages are relative to the project's final actual cost.
func BuildScenarios(metrics domain.ProjectScalarMetrics, sim config.Simulation) []domain.Scenario {
	rework := metrics.ReworkCost
	responseFactor := 0.0
	if sim.ReferenceResponseDays > 0 {
		responseFactor = sim.TargetResponseDays / sim.ReferenceResponseDays
	}

	scenarios := []domain.Scenario{
		{
			Name:          ScenarioCurrent,
			ProjectedCost: metrics.ActualCost,
			Savings:       0,
			Description:   "Baseline performance",
			Effort:        "N/A",
		},
		{
			Name:          ScenarioPerfectQuality,
			ProjectedCost: metrics.TotalBudget,
			Savings:       rework,
			Description:   "Zero rework required",
			Effort:        "High",
		},
		{
			Name:          ScenarioImprovedResponse,
			ProjectedCost: metrics.TotalBudget + rework*responseFactor,
			Savings:       rework * (1 - responseFactor),
			Description:   fmt.Sprintf("Response time <=%.2f days", sim.TargetResponseDays),
			Effort:        "Medium",
		},
		{
			Name:          ScenarioCombined,
			ProjectedCost: metrics.TotalBudget + rework*sim.CombinedCostFraction,
			Savings:       rework * sim.CombinedSavingsFraction,
			Description:   "Reduced failures + faster response",
			Effort:        "Medium",
		},
	}
	for i := range scenarios {
		if metrics.ActualCost != 0 {
			scenarios[i].SavingsPct = scenarios[i].Savings / metrics.ActualCost * 100
		}
	}
	return scenarios
}
