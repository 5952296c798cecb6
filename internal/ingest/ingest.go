// Package ingest parses the three snapshot tables from CSV. It owns the
// MissingData failure mode: absent files, absent columns and malformed
// cells are fatal at import time and reported with row context.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sitegate/internal/domain"
)

// MissingColumnError reports a required column absent from a table header.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e MissingColumnError) Error() string {
	return fmt.Sprintf("table %s: missing required column %q", e.Table, e.Column)
}

var taskColumns = []string{
	"pk", "stepId", "offered_date", "pass_date", "failure_count",
	"planned_value", "earned_value_traditional", "earned_value_quality_gated",
	"actual_cost", "rework_cost", "final_status",
}

var seriesColumns = []string{
	"date", "planned_value", "earned_value_traditional",
	"earned_value_quality_gated", "actual_cost",
}

var inspectionColumns = []string{"pk", "stepId", "inspectedAt", "status"}

// row gives named access to one CSV record.
type row struct {
	table  string
	line   int
	index  map[string]int
	record []string
}

func (r row) get(col string) string {
	return strings.TrimSpace(r.record[r.index[col]])
}

func (r row) float(col string) (float64, error) {
	raw := r.get(col)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("table %s row %d: column %s: invalid number %q", r.table, r.line, col, raw)
	}
	return v, nil
}

func (r row) int(col string) (int, error) {
	raw := r.get(col)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("table %s row %d: column %s: invalid integer %q", r.table, r.line, col, raw)
	}
	return v, nil
}

// Accepted timestamp layouts, most specific first.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (r row) time(col string) (time.Time, error) {
	raw := r.get(col)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("table %s row %d: column %s: invalid timestamp %q", r.table, r.line, col, raw)
}

func readTable(path, table string, required []string, fn func(row) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("table %s: %w", table, err)
	}
	defer f.Close()
	return decodeTable(f, table, required, fn)
}

func decodeTable(r io.Reader, table string, required []string, fn func(row) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("table %s: read header: %w", table, err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return MissingColumnError{Table: table, Column: col}
		}
	}
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("table %s row %d: %w", table, line+1, err)
		}
		line++
		if err := fn(row{table: table, line: line, index: index, record: record}); err != nil {
			return err
		}
	}
}

// TaskProgress reads the task-progress table from path.
func TaskProgress(path string) ([]domain.TaskProgressRecord, error) {
	var out []domain.TaskProgressRecord
	err := readTable(path, "task_progress", taskColumns, func(r row) error {
		rec := domain.TaskProgressRecord{
			ComponentKey: r.get("pk"),
			StepID:       r.get("stepId"),
			FinalStatus:  r.get("final_status"),
		}
		if rec.ComponentKey == "" {
			return fmt.Errorf("table task_progress row %d: empty pk", r.line)
		}
		var err error
		if rec.OfferedDate, err = r.time("offered_date"); err != nil {
			return err
		}
		if raw := r.get("pass_date"); raw != "" {
			t, err := r.time("pass_date")
			if err != nil {
				return err
			}
			rec.PassDate = &t
		}
		if rec.FailureCount, err = r.int("failure_count"); err != nil {
			return err
		}
		if rec.PlannedValue, err = r.float("planned_value"); err != nil {
			return err
		}
		if rec.EarnedValueTraditional, err = r.float("earned_value_traditional"); err != nil {
			return err
		}
		if rec.EarnedValueQuality, err = r.float("earned_value_quality_gated"); err != nil {
			return err
		}
		if rec.ActualCost, err = r.float("actual_cost"); err != nil {
			return err
		}
		if rec.ReworkCost, err = r.float("rework_cost"); err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TimeSeries reads the cumulative time-series table from path. Dates must
// be strictly increasing; the downstream index math assumes it.
func TimeSeries(path string) ([]domain.TimeSeriesPoint, error) {
	var out []domain.TimeSeriesPoint
	err := readTable(path, "time_series", seriesColumns, func(r row) error {
		var pt domain.TimeSeriesPoint
		var err error
		if pt.Date, err = r.time("date"); err != nil {
			return err
		}
		if pt.PlannedValue, err = r.float("planned_value"); err != nil {
			return err
		}
		if pt.EarnedValueTraditional, err = r.float("earned_value_traditional"); err != nil {
			return err
		}
		if pt.EarnedValueQuality, err = r.float("earned_value_quality_gated"); err != nil {
			return err
		}
		if pt.ActualCost, err = r.float("actual_cost"); err != nil {
			return err
		}
		if n := len(out); n > 0 && !out[n-1].Date.Before(pt.Date) {
			return fmt.Errorf("table time_series row %d: dates not strictly increasing at %s", r.line, pt.Date.Format("2006-01-02"))
		}
		out = append(out, pt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Inspections reads the quality-inspection log from path. Input order is
// irrelevant; the engine sorts defensively.
func Inspections(path string) ([]domain.InspectionEvent, error) {
	var out []domain.InspectionEvent
	err := readTable(path, "quality_inspections", inspectionColumns, func(r row) error {
		evt := domain.InspectionEvent{
			ComponentKey: r.get("pk"),
			StepID:       r.get("stepId"),
			Status:       r.get("status"),
		}
		if evt.ComponentKey == "" {
			return fmt.Errorf("table quality_inspections row %d: empty pk", r.line)
		}
		switch evt.Status {
		case domain.StatusPass, domain.StatusFail, domain.StatusOffered:
		default:
			return fmt.Errorf("table quality_inspections row %d: unknown status %q", r.line, evt.Status)
		}
		var err error
		if evt.InspectedAt, err = r.time("inspectedAt"); err != nil {
			return err
		}
		out = append(out, evt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
