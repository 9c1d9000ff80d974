package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// manifest records artifact identity in sqlite so (source hash, tier) maps to
// at most one output name across runs.
type manifest struct {
	db *sql.DB
	mu sync.RWMutex
}

type manifestRow struct {
	name string
	size int64
}

func openManifest(dbPath string) (*manifest, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache manifest: %w", err)
	}

	m := &manifest{db: db}
	if err := m.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize manifest schema: %w", err)
	}
	return m, nil
}

func (m *manifest) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		source_hash TEXT NOT NULL,
		tier TEXT NOT NULL,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		created INTEGER NOT NULL,
		PRIMARY KEY (source_hash, tier)
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_tier ON artifacts(tier);
	`
	_, err := m.db.Exec(schema)
	return err
}

func (m *manifest) lookup(ctx context.Context, sourceHash, tier string) (manifestRow, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var row manifestRow
	err := m.db.QueryRowContext(ctx,
		"SELECT name, size FROM artifacts WHERE source_hash = ? AND tier = ?",
		sourceHash, tier,
	).Scan(&row.name, &row.size)
	if errors.Is(err, sql.ErrNoRows) {
		return manifestRow{}, false, nil
	}
	if err != nil {
		return manifestRow{}, false, fmt.Errorf("query manifest: %w", err)
	}
	return row, true, nil
}

func (m *manifest) record(ctx context.Context, sourceHash, tier, name string, size int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO artifacts (source_hash, tier, name, size, created) VALUES (?, ?, ?, ?, ?)",
		sourceHash, tier, name, size, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record artifact: %w", err)
	}
	return nil
}

// clear removes manifest rows for one tier, or every row when tier is empty.
func (m *manifest) clear(ctx context.Context, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	if tier == "" {
		_, err = m.db.ExecContext(ctx, "DELETE FROM artifacts")
	} else {
		_, err = m.db.ExecContext(ctx, "DELETE FROM artifacts WHERE tier = ?", tier)
	}
	if err != nil {
		return fmt.Errorf("clear manifest: %w", err)
	}
	return nil
}

func (m *manifest) close() error {
	return m.db.Close()
}
