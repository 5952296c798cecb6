package engine

import (
	"math"
	"sort"

	"sitegate/internal/domain"
)

// ComputeScalarMetrics reduces the task-progress table to the project-level
// EVM indices under both accounting policies. Zero denominators resolve to
// 0 rather than NaN; one bad ratio must never take the report down.
func ComputeScalarMetrics(tasks []domain.TaskProgressRecord, totalBudget float64) domain.ProjectScalarMetrics {
	m := domain.ProjectScalarMetrics{
		TotalBudget: totalBudget,
		TotalTasks:  len(tasks),
	}
	totalFailures := 0
	for _, t := range tasks {
		m.EarnedValueTraditional += t.EarnedValueTraditional
		m.EarnedValueQuality += t.EarnedValueQuality
		m.ActualCost += t.ActualCost
		m.ReworkCost += t.ReworkCost
		totalFailures += t.FailureCount
	}

	m.SPITraditional = ratio(m.EarnedValueTraditional, totalBudget)
	m.SPIQuality = ratio(m.EarnedValueQuality, totalBudget)
	m.CPITraditional = ratio(m.EarnedValueTraditional, m.ActualCost)
	m.CPIQuality = ratio(m.EarnedValueQuality, m.ActualCost)
	m.ScheduleVariance = m.EarnedValueQuality - totalBudget
	m.CostVariance = m.EarnedValueQuality - m.ActualCost
	m.EVOverstatement = math.Abs(m.EarnedValueTraditional - m.EarnedValueQuality)

	if len(tasks) > 0 {
		// FailureRate counts failure incidents, FirstTimeRightRate proxies
		// tasks without one; a task can fail more than once, so the two
		// need not sum to 100.
		m.FailureRate = float64(totalFailures) / float64(len(tasks)) * 100
		m.FirstTimeRightRate = float64(len(tasks)-totalFailures) / float64(len(tasks)) * 100
		m.AverageTaskValue = totalBudget / float64(len(tasks))
	}
	return m
}

// ComputeTimeSeriesDerived computes variance and index columns for every
// date into a fresh slice; the canonical input is never written to. Ratios
// with a zero denominator stay nil.
func ComputeTimeSeriesDerived(series []domain.TimeSeriesPoint) []domain.TimeSeriesDerived {
	out := make([]domain.TimeSeriesDerived, 0, len(series))
	for _, pt := range series {
		d := domain.TimeSeriesDerived{
			Date:                   pt.Date,
			PlannedValue:           pt.PlannedValue,
			EarnedValueTraditional: pt.EarnedValueTraditional,
			EarnedValueQuality:     pt.EarnedValueQuality,
			ActualCost:             pt.ActualCost,
			ScheduleVariance:       pt.EarnedValueQuality - pt.PlannedValue,
			CostVariance:           pt.EarnedValueQuality - pt.ActualCost,
		}
		if pt.PlannedValue != 0 {
			d.SPITraditional = ptr(pt.EarnedValueTraditional / pt.PlannedValue)
			d.SPIQuality = ptr(pt.EarnedValueQuality / pt.PlannedValue)
		}
		if pt.ActualCost != 0 {
			d.CPI = ptr(pt.EarnedValueQuality / pt.ActualCost)
		}
		out = append(out, d)
	}
	return out
}

// ComputeStepTaskSummaries rolls the task table up per ITP step, ordered by
// step id.
func ComputeStepTaskSummaries(tasks []domain.TaskProgressRecord) []domain.StepTaskSummary {
	totals := make(map[string]*domain.StepTaskSummary)
	for _, t := range tasks {
		s, ok := totals[t.StepID]
		if !ok {
			s = &domain.StepTaskSummary{StepID: t.StepID}
			totals[t.StepID] = s
		}
		s.Tasks++
		s.PlannedValue += t.PlannedValue
		s.EarnedValueQuality += t.EarnedValueQuality
		s.ActualCost += t.ActualCost
		s.ReworkCost += t.ReworkCost
		s.FailureCount += t.FailureCount
	}
	out := make([]domain.StepTaskSummary, 0, len(totals))
	for _, s := range totals {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func ptr(v float64) *float64 { return &v }
