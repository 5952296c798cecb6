package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitegate/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// RFC3339Nano keeps sub-second inspection timestamps intact across the
// store round trip; elapsed-hours figures depend on the exact instants.
const timeFormat = time.RFC3339Nano

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeFormat, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("stored timestamp %q: %w", raw, err)
	}
	return t.UTC(), nil
}

const snapshotQuery = `SELECT s.id, COALESCE(s.name,'') AS name, s.project_id, s.created_at,
	(SELECT COUNT(*) FROM task_progress t WHERE t.snapshot_id = s.id),
	(SELECT COUNT(*) FROM time_series ts WHERE ts.snapshot_id = s.id),
	(SELECT COUNT(*) FROM inspections i WHERE i.snapshot_id = s.id)
	FROM snapshots s`

func scanSnapshot(scan func(dest ...any) error) (domain.Snapshot, error) {
	var s domain.Snapshot
	err := scan(&s.ID, &s.Name, &s.ProjectID, &s.CreatedAt, &s.Tasks, &s.SeriesDays, &s.Inspections)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) InsertSnapshotTx(ctx context.Context, tx *sql.Tx, s domain.Snapshot) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO snapshots(id,name,project_id,created_at) VALUES (?,?,?,?)`,
		s.ID, nullable(s.Name), s.ProjectID, s.CreatedAt)
	return err
}

func (r Repo) GetSnapshot(ctx context.Context, id string) (domain.Snapshot, error) {
	row := r.DB.QueryRowContext(ctx, snapshotQuery+` WHERE s.id=?`, id)
	return scanSnapshot(row.Scan)
}

func (r Repo) ListSnapshots(ctx context.Context) ([]domain.Snapshot, error) {
	rows, err := r.DB.QueryContext(ctx, snapshotQuery+` ORDER BY s.created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// SingleSnapshot returns the only snapshot in the workspace, or an error
// telling the caller to disambiguate.
func (r Repo) SingleSnapshot(ctx context.Context) (domain.Snapshot, error) {
	items, err := r.ListSnapshots(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if len(items) == 0 {
		return domain.Snapshot{}, ErrNotFound
	}
	if len(items) > 1 {
		return domain.Snapshot{}, fmt.Errorf("multiple snapshots exist; specify --snapshot")
	}
	return items[0], nil
}

func (r Repo) DeleteSnapshot(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTaskProgressTx(ctx context.Context, tx *sql.Tx, snapshotID string, records []domain.TaskProgressRecord) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO task_progress(
		snapshot_id,component_key,step_id,offered_date,pass_date,failure_count,
		planned_value,earned_value_traditional,earned_value_quality,actual_cost,rework_cost,final_status)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		var passDate any
		if rec.PassDate != nil {
			passDate = rec.PassDate.UTC().Format(timeFormat)
		}
		if _, err := stmt.ExecContext(ctx,
			snapshotID, rec.ComponentKey, rec.StepID,
			rec.OfferedDate.UTC().Format(timeFormat), passDate, rec.FailureCount,
			rec.PlannedValue, rec.EarnedValueTraditional, rec.EarnedValueQuality,
			rec.ActualCost, rec.ReworkCost, rec.FinalStatus); err != nil {
			return fmt.Errorf("insert task %s: %w", rec.ComponentKey, err)
		}
	}
	return nil
}

func (r Repo) InsertTimeSeriesTx(ctx context.Context, tx *sql.Tx, snapshotID string, points []domain.TimeSeriesPoint) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO time_series(
		snapshot_id,date,planned_value,earned_value_traditional,earned_value_quality,actual_cost)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, pt := range points {
		if _, err := stmt.ExecContext(ctx,
			snapshotID, pt.Date.UTC().Format(timeFormat),
			pt.PlannedValue, pt.EarnedValueTraditional, pt.EarnedValueQuality, pt.ActualCost); err != nil {
			return fmt.Errorf("insert series point %s: %w", pt.Date.Format("2006-01-02"), err)
		}
	}
	return nil
}

func (r Repo) InsertInspectionsTx(ctx context.Context, tx *sql.Tx, snapshotID string, events []domain.InspectionEvent) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO inspections(
		snapshot_id,component_key,step_id,inspected_at,status) VALUES (?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, evt := range events {
		if _, err := stmt.ExecContext(ctx,
			snapshotID, evt.ComponentKey, evt.StepID,
			evt.InspectedAt.UTC().Format(timeFormat), evt.Status); err != nil {
			return fmt.Errorf("insert inspection %s: %w", evt.ComponentKey, err)
		}
	}
	return nil
}

// TaskProgress returns the task rows of a snapshot ordered by component key.
func (r Repo) TaskProgress(ctx context.Context, snapshotID string) ([]domain.TaskProgressRecord, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT component_key,step_id,offered_date,pass_date,failure_count,
		planned_value,earned_value_traditional,earned_value_quality,actual_cost,rework_cost,final_status
		FROM task_progress WHERE snapshot_id=? ORDER BY component_key`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskProgressRecord
	for rows.Next() {
		var rec domain.TaskProgressRecord
		var offered string
		var passed sql.NullString
		if err := rows.Scan(&rec.ComponentKey, &rec.StepID, &offered, &passed, &rec.FailureCount,
			&rec.PlannedValue, &rec.EarnedValueTraditional, &rec.EarnedValueQuality,
			&rec.ActualCost, &rec.ReworkCost, &rec.FinalStatus); err != nil {
			return nil, err
		}
		if rec.OfferedDate, err = parseTime(offered); err != nil {
			return nil, err
		}
		if passed.Valid {
			t, err := parseTime(passed.String)
			if err != nil {
				return nil, err
			}
			rec.PassDate = &t
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// TimeSeries returns the cumulative series of a snapshot in date order.
func (r Repo) TimeSeries(ctx context.Context, snapshotID string) ([]domain.TimeSeriesPoint, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT date,planned_value,earned_value_traditional,earned_value_quality,actual_cost
		FROM time_series WHERE snapshot_id=? ORDER BY date`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TimeSeriesPoint
	for rows.Next() {
		var pt domain.TimeSeriesPoint
		var date string
		if err := rows.Scan(&date, &pt.PlannedValue, &pt.EarnedValueTraditional, &pt.EarnedValueQuality, &pt.ActualCost); err != nil {
			return nil, err
		}
		if pt.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		res = append(res, pt)
	}
	return res, rows.Err()
}

// Inspections returns the inspection log of a snapshot ordered by
// component key then timestamp.
func (r Repo) Inspections(ctx context.Context, snapshotID string) ([]domain.InspectionEvent, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT component_key,step_id,inspected_at,status
		FROM inspections WHERE snapshot_id=? ORDER BY component_key, inspected_at`, snapshotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.InspectionEvent
	for rows.Next() {
		var evt domain.InspectionEvent
		var ts string
		if err := rows.Scan(&evt.ComponentKey, &evt.StepID, &ts, &evt.Status); err != nil {
			return nil, err
		}
		if evt.InspectedAt, err = parseTime(ts); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

// LatestEvents returns the most recent audit-log rows, newest first.
func (r Repo) LatestEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(snapshot_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json
		FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var evt domain.Event
		if err := rows.Scan(&evt.ID, &evt.TS, &evt.Type, &evt.SnapshotID, &evt.EntityKind, &evt.EntityID, &evt.ActorID, &evt.Payload); err != nil {
			return nil, err
		}
		res = append(res, evt)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
