package repo_test

import (
	"context"
	"math"
	"testing"
	"time"

	"sitegate/internal/db"
	"sitegate/internal/domain"
	"sitegate/internal/migrate"
	"sitegate/internal/repo"
)

func newStore(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func TestInspectionTimestampsKeepSubsecondPrecision(t *testing.T) {
	r, ctx := newStore(t)

	failedAt := time.Date(2024, 3, 1, 10, 0, 0, 250_000_000, time.UTC)
	passedAt := time.Date(2024, 3, 1, 16, 30, 0, 750_000_000, time.UTC)
	events := []domain.InspectionEvent{
		{ComponentKey: "F-001", StepID: "ITP-01", InspectedAt: failedAt, Status: domain.StatusFail},
		{ComponentKey: "F-001", StepID: "ITP-01", InspectedAt: passedAt, Status: domain.StatusPass},
	}

	tx, err := r.DB.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	snap := domain.Snapshot{ID: "snap-1", ProjectID: "proj-1", CreatedAt: "2024-03-10T00:00:00Z"}
	if err := r.InsertSnapshotTx(ctx, tx, snap); err != nil {
		t.Fatalf("insert snapshot: %v", err)
	}
	if err := r.InsertInspectionsTx(ctx, tx, snap.ID, events); err != nil {
		t.Fatalf("insert inspections: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := r.Inspections(ctx, snap.ID)
	if err != nil {
		t.Fatalf("read inspections: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if !got[0].InspectedAt.Equal(failedAt) || !got[1].InspectedAt.Equal(passedAt) {
		t.Fatalf("timestamps lost precision: %v / %v", got[0].InspectedAt, got[1].InspectedAt)
	}
	elapsed := got[1].InspectedAt.Sub(got[0].InspectedAt).Hours()
	if math.Abs(elapsed-(6.5+0.5/3600)) > 1e-9 {
		t.Fatalf("elapsed hours wrong: %v", elapsed)
	}
}
