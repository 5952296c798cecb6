package app

import (
	"context"
	"errors"
	"fmt"

	"sitegate/internal/domain"
	"sitegate/internal/repo"
)

// ResolveSnapshot picks the snapshot reports run against. It prefers the
// explicit override, then falls back to the single imported snapshot.
func ResolveSnapshot(ctx context.Context, snapshotOverride string, r repo.Repo) (domain.Snapshot, error) {
	if snapshotOverride != "" {
		s, err := r.GetSnapshot(ctx, snapshotOverride)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Snapshot{}, fmt.Errorf("snapshot %q not found", snapshotOverride)
			}
			return domain.Snapshot{}, err
		}
		return s, nil
	}
	s, err := r.SingleSnapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s, nil
}
