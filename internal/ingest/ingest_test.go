package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTaskProgress(t *testing.T) {
	path := writeCSV(t, "tasks.csv", strings.Join([]string{
		"pk,stepId,offered_date,pass_date,failure_count,planned_value,earned_value_traditional,earned_value_quality_gated,actual_cost,rework_cost,final_status",
		"F-001,ITP-01,2024-03-01 08:00:00,2024-03-03 10:00:00,1,1000,1000,900,1100,100,Pass",
		"F-002,ITP-02,2024-03-02,,0,500,400,0,450,0,Offered",
	}, "\n"))
	got, err := TaskProgress(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	first := got[0]
	if first.ComponentKey != "F-001" || first.StepID != "ITP-01" || first.FailureCount != 1 {
		t.Fatalf("first record wrong: %+v", first)
	}
	if first.PassDate == nil || !first.PassDate.Equal(time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("pass date wrong: %v", first.PassDate)
	}
	if d := first.DurationDays(); d == nil || *d != 2 {
		t.Fatalf("duration days wrong: %v", d)
	}
	if got[1].PassDate != nil {
		t.Fatalf("empty pass date should stay nil: %v", got[1].PassDate)
	}
	if got[1].DurationDays() != nil {
		t.Fatalf("unpassed task must have no duration")
	}
}

func TestTaskProgressMissingColumn(t *testing.T) {
	path := writeCSV(t, "tasks.csv", strings.Join([]string{
		"pk,stepId,offered_date,pass_date,failure_count",
		"F-001,ITP-01,2024-03-01,,0",
	}, "\n"))
	_, err := TaskProgress(path)
	var missing MissingColumnError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
	if missing.Table != "task_progress" || missing.Column != "planned_value" {
		t.Fatalf("wrong missing column: %+v", missing)
	}
}

func TestTaskProgressBadCell(t *testing.T) {
	path := writeCSV(t, "tasks.csv", strings.Join([]string{
		"pk,stepId,offered_date,pass_date,failure_count,planned_value,earned_value_traditional,earned_value_quality_gated,actual_cost,rework_cost,final_status",
		"F-001,ITP-01,2024-03-01,,0,not-a-number,0,0,0,0,Offered",
	}, "\n"))
	_, err := TaskProgress(path)
	if err == nil || !strings.Contains(err.Error(), "planned_value") {
		t.Fatalf("expected cell error naming the column, got %v", err)
	}
}

func TestTimeSeries(t *testing.T) {
	path := writeCSV(t, "series.csv", strings.Join([]string{
		"date,planned_value,earned_value_traditional,earned_value_quality_gated,actual_cost",
		"2024-03-01,100,80,60,70",
		"2024-03-02,200,180,150,170",
	}, "\n"))
	got, err := TimeSeries(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[1].EarnedValueQuality != 150 {
		t.Fatalf("series wrong: %+v", got)
	}
}

func TestTimeSeriesRejectsNonIncreasingDates(t *testing.T) {
	path := writeCSV(t, "series.csv", strings.Join([]string{
		"date,planned_value,earned_value_traditional,earned_value_quality_gated,actual_cost",
		"2024-03-02,100,80,60,70",
		"2024-03-01,200,180,150,170",
	}, "\n"))
	_, err := TimeSeries(path)
	if err == nil || !strings.Contains(err.Error(), "strictly increasing") {
		t.Fatalf("expected ordering error, got %v", err)
	}
}

func TestInspections(t *testing.T) {
	path := writeCSV(t, "inspections.csv", strings.Join([]string{
		"pk,stepId,inspectedAt,status",
		"F-001,ITP-01,2024-03-01 08:00:00,Offered",
		"F-001,ITP-01,2024-03-01 10:00:00,Fail",
		"F-001,ITP-01,2024-03-01 20:00:00,Pass",
	}, "\n"))
	got, err := Inspections(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 3 || got[1].Status != "Fail" {
		t.Fatalf("inspections wrong: %+v", got)
	}
}

func TestInspectionsRejectsUnknownStatus(t *testing.T) {
	path := writeCSV(t, "inspections.csv", strings.Join([]string{
		"pk,stepId,inspectedAt,status",
		"F-001,ITP-01,2024-03-01,Rejected",
	}, "\n"))
	_, err := Inspections(path)
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestMissingFile(t *testing.T) {
	_, err := TaskProgress(filepath.Join(t.TempDir(), "absent.csv"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}
