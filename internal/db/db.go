// Package db manages the workspace snapshot store, a single sqlite file
// kept under the .sitegate directory of a project workspace.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDir = ".sitegate"
	storeName    = "sitegate.db"
)

type Config struct {
	Workspace string
}

// EnsureWorkspace creates the .sitegate directory under workspace if
// missing and returns its path.
func EnsureWorkspace(workspace string) (string, error) {
	path := filepath.Join(workspace, workspaceDir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the snapshot store for a workspace, creating the workspace
// directory on first use. Foreign keys stay on so deleting a snapshot
// cascades to its task, series and inspection rows. WAL mode plus a busy
// timeout lets the API serve reports while an import transaction holds
// the writer lock.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Path returns the snapshot store location for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDir, storeName)
}
