package engine

import (
	"math"
	"sort"

	"sitegate/internal/domain"
)

// sortedFailures returns the Fail events of the log ordered by inspection
// time. Input order is never trusted.
func sortedFailures(events []domain.InspectionEvent) []domain.InspectionEvent {
	var failures []domain.InspectionEvent
	for _, evt := range events {
		if evt.Status == domain.StatusFail {
			failures = append(failures, evt)
		}
	}
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].InspectedAt.Before(failures[j].InspectedAt)
	})
	return failures
}

// byComponent groups events per component key, each group sorted by
// inspection time.
func byComponent(events []domain.InspectionEvent) map[string][]domain.InspectionEvent {
	groups := make(map[string][]domain.InspectionEvent)
	for _, evt := range events {
		groups[evt.ComponentKey] = append(groups[evt.ComponentKey], evt)
	}
	for key := range groups {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].InspectedAt.Before(group[j].InspectedAt)
		})
		groups[key] = group
	}
	return groups
}

// DeriveResponseTimes emits one event per failure that has any subsequent
// inspection of the same component. A failure with no later event yields
// nothing: unresolved failures are invisible to this metric.
// Output order follows failure chronology.
func DeriveResponseTimes(events []domain.InspectionEvent) []domain.ResponseTimeEvent {
	groups := byComponent(events)
	var out []domain.ResponseTimeEvent
	for _, failure := range sortedFailures(events) {
		for _, next := range groups[failure.ComponentKey] {
			if !next.InspectedAt.After(failure.InspectedAt) {
				continue
			}
			hours := next.InspectedAt.Sub(failure.InspectedAt).Hours()
			out = append(out, domain.ResponseTimeEvent{
				ComponentKey:      failure.ComponentKey,
				StepID:            failure.StepID,
				FailureDate:       failure.InspectedAt,
				ResponseTimeHours: hours,
				ResponseTimeDays:  hours / 24,
				NextStatus:        next.Status,
			})
			break
		}
	}
	return out
}

// DeriveReworkCycles emits one cycle per failure that is eventually
// followed by a Pass of the same component. Intermediate inspections are
// those strictly between the failure and that Pass.
func DeriveReworkCycles(events []domain.InspectionEvent) []domain.ReworkCycle {
	groups := byComponent(events)
	var out []domain.ReworkCycle
	for _, failure := range sortedFailures(events) {
		group := groups[failure.ComponentKey]
		var resolution *domain.InspectionEvent
		for i, evt := range group {
			if evt.Status == domain.StatusPass && evt.InspectedAt.After(failure.InspectedAt) {
				resolution = &group[i]
				break
			}
		}
		if resolution == nil {
			continue
		}
		intermediate := 0
		for _, evt := range group {
			if evt.InspectedAt.After(failure.InspectedAt) && evt.InspectedAt.Before(resolution.InspectedAt) {
				intermediate++
			}
		}
		hours := resolution.InspectedAt.Sub(failure.InspectedAt).Hours()
		out = append(out, domain.ReworkCycle{
			ComponentKey:            failure.ComponentKey,
			StepID:                  failure.StepID,
			FailureDate:             failure.InspectedAt,
			ResolutionDate:          resolution.InspectedAt,
			ReworkTimeHours:         hours,
			ReworkTimeDays:          hours / 24,
			IntermediateInspections: intermediate,
			TotalAttempts:           intermediate + 1,
		})
	}
	return out
}

// ComputeStepPerformance groups the log per ITP step. Rates are
// percentages rounded to one decimal; rows come out in step order.
func ComputeStepPerformance(events []domain.InspectionEvent) []domain.StepPerformance {
	totals := make(map[string]*domain.StepPerformance)
	for _, evt := range events {
		perf, ok := totals[evt.StepID]
		if !ok {
			perf = &domain.StepPerformance{StepID: evt.StepID}
			totals[evt.StepID] = perf
		}
		perf.TotalInspections++
		switch evt.Status {
		case domain.StatusPass:
			perf.Passes++
		case domain.StatusFail:
			perf.Failures++
		}
	}
	out := make([]domain.StepPerformance, 0, len(totals))
	for _, perf := range totals {
		perf.PassRate = round1(percent(perf.Passes, perf.TotalInspections))
		perf.FailureRate = round1(percent(perf.Failures, perf.TotalInspections))
		out = append(out, *perf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepID < out[j].StepID })
	return out
}

// ComputeStatusBreakdown counts outcomes across the whole log.
func ComputeStatusBreakdown(events []domain.InspectionEvent) domain.StatusBreakdown {
	var b domain.StatusBreakdown
	for _, evt := range events {
		b.TotalInspections++
		switch evt.Status {
		case domain.StatusPass:
			b.Passes++
		case domain.StatusFail:
			b.Failures++
		case domain.StatusOffered:
			b.Offered++
		}
	}
	if b.Offered > 0 {
		b.PassOfOfferedRate = round1(float64(b.Passes) / float64(b.Offered) * 100)
	}
	return b
}

// ComputeDailyStatusCounts projects the log onto calendar dates and counts
// events per date and status, sorted by date then status.
func ComputeDailyStatusCounts(events []domain.InspectionEvent) []domain.DailyStatusCount {
	type key struct {
		date   string
		status string
	}
	counts := make(map[key]int)
	for _, evt := range events {
		counts[key{evt.InspectedAt.UTC().Format("2006-01-02"), evt.Status}]++
	}
	out := make([]domain.DailyStatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, domain.DailyStatusCount{Date: k.date, Status: k.status, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Status < out[j].Status
	})
	return out
}

// ComputeTemporalSummary aggregates the derived collections. Every ratio
// short-circuits to 0 on an empty source; nothing here can divide by zero.
func ComputeTemporalSummary(events []domain.InspectionEvent, projectDurationDays int) domain.TemporalSummary {
	responses := DeriveResponseTimes(events)
	cycles := DeriveReworkCycles(events)

	failures := 0
	for _, evt := range events {
		if evt.Status == domain.StatusFail {
			failures++
		}
	}

	summary := domain.TemporalSummary{
		ResponseEvents:     len(responses),
		ReworkCycles:       len(cycles),
		UnresolvedFailures: failures - len(responses),
	}

	if len(responses) > 0 {
		var total float64
		for _, r := range responses {
			total += r.ResponseTimeHours
		}
		summary.AvgResponseTimeHours = total / float64(len(responses))
		summary.AvgResponseTimeDays = summary.AvgResponseTimeHours / 24
	}
	if len(cycles) > 0 {
		var days, hours float64
		firstTime := 0
		for _, c := range cycles {
			days += c.ReworkTimeDays
			hours += c.ReworkTimeHours
			if c.TotalAttempts == 1 {
				firstTime++
			}
		}
		summary.AvgReworkTimeDays = days / float64(len(cycles))
		summary.TotalQualityDelayHours = hours
		summary.TotalQualityDelayDays = hours / 24
		summary.FirstTimeReworkSuccessRate = float64(firstTime) / float64(len(cycles)) * 100
		if projectDurationDays > 0 {
			summary.QualityDelayPctOfProject = summary.TotalQualityDelayDays / float64(projectDurationDays) * 100
		}
	}
	return summary
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
