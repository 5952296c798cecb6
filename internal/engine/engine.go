package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sitegate/internal/config"
	"sitegate/internal/domain"
	"sitegate/internal/events"
	"sitegate/internal/ingest"
	"sitegate/internal/repo"
)

// Engine computes reports against imported snapshots. All read operations
// derive fresh values from the stored inputs, so an Engine is safe for
// concurrent readers.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// writer returns the event writer with the engine clock filled in, so
// audit timestamps follow an injected Now.
func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// ImportOptions are parameters for importing a snapshot from CSV files.
type ImportOptions struct {
	ID              string
	Name            string
	TasksPath       string
	SeriesPath      string
	InspectionsPath string
	ActorID         string
}

// ImportSnapshot parses the three snapshot tables and stores them in one
// transaction. Structural problems in any table abort the whole import.
func (e Engine) ImportSnapshot(ctx context.Context, opts ImportOptions) (domain.Snapshot, error) {
	if e.Config == nil {
		return domain.Snapshot{}, errors.New("config not loaded")
	}
	if opts.TasksPath == "" || opts.SeriesPath == "" || opts.InspectionsPath == "" {
		return domain.Snapshot{}, errors.New("tasks, series and inspections files are required")
	}

	tasks, err := ingest.TaskProgress(opts.TasksPath)
	if err != nil {
		return domain.Snapshot{}, err
	}
	series, err := ingest.TimeSeries(opts.SeriesPath)
	if err != nil {
		return domain.Snapshot{}, err
	}
	inspections, err := ingest.Inspections(opts.InspectionsPath)
	if err != nil {
		return domain.Snapshot{}, err
	}

	now := e.now().UTC().Format(time.RFC3339)
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := domain.Snapshot{
		ID:          id,
		Name:        opts.Name,
		ProjectID:   e.Config.Project.ID,
		Tasks:       len(tasks),
		SeriesDays:  len(series),
		Inspections: len(inspections),
		CreatedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertSnapshotTx(ctx, tx, s); err != nil {
		return domain.Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := e.Repo.InsertTaskProgressTx(ctx, tx, s.ID, tasks); err != nil {
		return domain.Snapshot{}, err
	}
	if err := e.Repo.InsertTimeSeriesTx(ctx, tx, s.ID, series); err != nil {
		return domain.Snapshot{}, err
	}
	if err := e.Repo.InsertInspectionsTx(ctx, tx, s.ID, inspections); err != nil {
		return domain.Snapshot{}, err
	}
	if err := e.writer().Append(ctx, tx, "snapshot.imported", s.ID, "snapshot", s.ID, opts.ActorID, events.EventPayload{
		"tasks":       len(tasks),
		"series_days": len(series),
		"inspections": len(inspections),
	}); err != nil {
		return domain.Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Snapshot{}, err
	}
	return s, nil
}

// DeleteSnapshot removes a snapshot and its rows.
func (e Engine) DeleteSnapshot(ctx context.Context, id, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteSnapshot(ctx, tx, id); err != nil {
		return err
	}
	if err := e.writer().Append(ctx, tx, "snapshot.deleted", id, "snapshot", id, actorID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ScalarMetrics computes the project-level EVM reduction for a snapshot.
func (e Engine) ScalarMetrics(ctx context.Context, snapshotID string) (domain.ProjectScalarMetrics, error) {
	if _, err := e.Repo.GetSnapshot(ctx, snapshotID); err != nil {
		return domain.ProjectScalarMetrics{}, err
	}
	tasks, err := e.Repo.TaskProgress(ctx, snapshotID)
	if err != nil {
		return domain.ProjectScalarMetrics{}, err
	}
	return ComputeScalarMetrics(tasks, e.Config.Budget.Total), nil
}

// ResponseTimes derives the failure response-time events of a snapshot.
func (e Engine) ResponseTimes(ctx context.Context, snapshotID string) ([]domain.ResponseTimeEvent, error) {
	inspections, err := e.inspections(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return DeriveResponseTimes(inspections), nil
}

// ReworkCycles derives the failure-to-pass cycles of a snapshot.
func (e Engine) ReworkCycles(ctx context.Context, snapshotID string) ([]domain.ReworkCycle, error) {
	inspections, err := e.inspections(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return DeriveReworkCycles(inspections), nil
}

// TemporalSummary aggregates response and rework metrics for a snapshot.
func (e Engine) TemporalSummary(ctx context.Context, snapshotID string) (domain.TemporalSummary, error) {
	inspections, err := e.inspections(ctx, snapshotID)
	if err != nil {
		return domain.TemporalSummary{}, err
	}
	return ComputeTemporalSummary(inspections, e.Config.Budget.DurationDays), nil
}

// StepReport pairs inspection performance and task rollups per ITP step.
type StepReport struct {
	Performance []domain.StepPerformance `json:"performance"`
	Tasks       []domain.StepTaskSummary `json:"tasks"`
}

// Steps builds the per-step report for a snapshot.
func (e Engine) Steps(ctx context.Context, snapshotID string) (StepReport, error) {
	inspections, err := e.inspections(ctx, snapshotID)
	if err != nil {
		return StepReport{}, err
	}
	tasks, err := e.Repo.TaskProgress(ctx, snapshotID)
	if err != nil {
		return StepReport{}, err
	}
	return StepReport{
		Performance: ComputeStepPerformance(inspections),
		Tasks:       ComputeStepTaskSummaries(tasks),
	}, nil
}

// QualityReport pairs the status breakdown with the daily event timeline.
type QualityReport struct {
	Breakdown domain.StatusBreakdown    `json:"breakdown"`
	Daily     []domain.DailyStatusCount `json:"daily"`
}

// Quality builds the inspection-outcome report for a snapshot.
func (e Engine) Quality(ctx context.Context, snapshotID string) (QualityReport, error) {
	inspections, err := e.inspections(ctx, snapshotID)
	if err != nil {
		return QualityReport{}, err
	}
	return QualityReport{
		Breakdown: ComputeStatusBreakdown(inspections),
		Daily:     ComputeDailyStatusCounts(inspections),
	}, nil
}

// TimeSeriesDerived computes the variance/index series for a snapshot.
func (e Engine) TimeSeriesDerived(ctx context.Context, snapshotID string) ([]domain.TimeSeriesDerived, error) {
	if _, err := e.Repo.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	series, err := e.Repo.TimeSeries(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return ComputeTimeSeriesDerived(series), nil
}

// Scenarios builds the improvement projections for a snapshot.
func (e Engine) Scenarios(ctx context.Context, snapshotID string) ([]domain.Scenario, error) {
	metrics, err := e.ScalarMetrics(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	return BuildScenarios(metrics, e.Config.Simulation), nil
}

// Tasks returns the task-progress rows of a snapshot.
func (e Engine) Tasks(ctx context.Context, snapshotID string) ([]domain.TaskProgressRecord, error) {
	if _, err := e.Repo.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	return e.Repo.TaskProgress(ctx, snapshotID)
}

func (e Engine) inspections(ctx context.Context, snapshotID string) ([]domain.InspectionEvent, error) {
	if _, err := e.Repo.GetSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}
	return e.Repo.Inspections(ctx, snapshotID)
}
