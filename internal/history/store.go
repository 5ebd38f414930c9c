// Package history keeps the bounded set of inventory snapshots and the sync
// run logs, as files on disk indexed in the database.
package history

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"meli-inventory-sync/internal/adapters/spreadsheet"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/domain/model"
	"meli-inventory-sync/internal/infra/db"
)

var ErrNotFound = errors.New("history: not found")

const fileTimeLayout = "20060102_150405"

type Snapshot struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	Path           string    `json:"path"`
	Records        int       `json:"records"`
	UnresolvedSKUs int       `json:"unresolved_skus"`
}

type RunRecord struct {
	ID            string         `json:"id"`
	Status        model.RunState `json:"status"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    time.Time      `json:"finished_at"`
	Successes     int            `json:"successes"`
	Failures      int            `json:"failures"`
	Paused        int            `json:"paused"`
	PauseFailures int            `json:"pause_failures"`
	ErrorKinds    []string       `json:"error_kinds"`
	LogPath       string         `json:"log_path"`
}

type Store struct {
	db           *db.DB
	dir          string
	maxSnapshots int
	now          func() time.Time
}

func NewStore(conn *db.DB, cfg config.HistoryConfig) (*Store, error) {
	if conn == nil {
		return nil, errors.New("history: database is required")
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "history"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir %s: %w", dir, err)
	}
	maxSnapshots := cfg.MaxSnapshots
	if maxSnapshots <= 0 {
		maxSnapshots = 10
	}
	return &Store{
		db:           conn,
		dir:          dir,
		maxSnapshots: maxSnapshots,
		now:          time.Now,
	}, nil
}

// SaveSnapshot writes records to a timestamped workbook and evicts the
// oldest snapshots beyond the configured maximum.
func (s *Store) SaveSnapshot(ctx context.Context, records []model.ListingRecord) (Snapshot, error) {
	var buf bytes.Buffer
	if err := spreadsheet.WriteInventory(&buf, records); err != nil {
		return Snapshot{}, fmt.Errorf("history: encode snapshot: %w", err)
	}

	id := uuid.NewString()
	createdAt := s.now().UTC()
	name := fmt.Sprintf("inventory_%s_%s.xlsx", createdAt.Format(fileTimeLayout), shortID(id))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return Snapshot{}, fmt.Errorf("history: write snapshot: %w", err)
	}

	unresolved := 0
	for _, r := range records {
		if r.SKU == "" {
			unresolved++
		}
	}
	snapshot := Snapshot{
		ID:             id,
		CreatedAt:      createdAt,
		Path:           path,
		Records:        len(records),
		UnresolvedSKUs: unresolved,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO inventory_snapshots (id, created_at, path, records, unresolved_skus)
		VALUES (?, ?, ?, ?, ?)
	`, snapshot.ID, snapshot.CreatedAt, snapshot.Path, snapshot.Records, snapshot.UnresolvedSKUs)
	if err != nil {
		_ = os.Remove(path)
		return Snapshot{}, fmt.Errorf("history: index snapshot: %w", err)
	}

	if err := s.evictSnapshots(ctx); err != nil {
		return snapshot, err
	}
	return snapshot, nil
}

func (s *Store) evictSnapshots(ctx context.Context) error {
	snapshots, err := s.ListSnapshots(ctx)
	if err != nil {
		return err
	}
	if len(snapshots) <= s.maxSnapshots {
		return nil
	}
	for _, old := range snapshots[s.maxSnapshots:] {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM inventory_snapshots WHERE id = ?`, old.ID); err != nil {
			return fmt.Errorf("history: evict snapshot %s: %w", old.ID, err)
		}
		if err := os.Remove(old.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("history: remove snapshot file %s: %w", old.Path, err)
		}
	}
	return nil
}

// ListSnapshots returns snapshots newest first.
func (s *Store) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, path, records, unresolved_skus
		FROM inventory_snapshots
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("history: list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.CreatedAt, &snap.Path, &snap.Records, &snap.UnresolvedSKUs); err != nil {
			return nil, fmt.Errorf("history: scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

func (s *Store) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, path, records, unresolved_skus
		FROM inventory_snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`).Scan(&snap.ID, &snap.CreatedAt, &snap.Path, &snap.Records, &snap.UnresolvedSKUs)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("history: latest snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) LoadSnapshot(snap Snapshot) ([]model.ListingRecord, error) {
	f, err := os.Open(snap.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: open snapshot: %w", err)
	}
	defer f.Close()
	return spreadsheet.ReadInventory(f)
}

// SaveRunLog writes the plain-text run log and indexes the run.
func (s *Store) SaveRunLog(ctx context.Context, result model.SyncResult) (RunRecord, error) {
	finished := result.FinishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	finished = finished.UTC()
	started := result.StartedAt
	if started.IsZero() {
		started = finished
	}
	id := result.RunID
	if id == "" {
		id = uuid.NewString()
	}

	name := fmt.Sprintf("sync_%s.log", finished.Format(fileTimeLayout))
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err == nil {
		path = filepath.Join(s.dir, fmt.Sprintf("sync_%s_%s.log", finished.Format(fileTimeLayout), shortID(id)))
	}
	if err := os.WriteFile(path, []byte(result.Text()), 0o644); err != nil {
		return RunRecord{}, fmt.Errorf("history: write run log: %w", err)
	}

	kinds := result.ErrorKinds
	if kinds == nil {
		kinds = []string{}
	}
	encodedKinds, err := json.Marshal(kinds)
	if err != nil {
		return RunRecord{}, fmt.Errorf("history: encode error kinds: %w", err)
	}

	record := RunRecord{
		ID:            id,
		Status:        result.Status,
		StartedAt:     started.UTC(),
		FinishedAt:    finished,
		Successes:     result.Successes,
		Failures:      result.Failures,
		Paused:        result.Paused,
		PauseFailures: result.PauseFailures,
		ErrorKinds:    kinds,
		LogPath:       path,
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, status, started_at, finished_at, successes, failures, paused, pause_failures, error_kinds, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		string(record.Status),
		record.StartedAt,
		record.FinishedAt,
		record.Successes,
		record.Failures,
		record.Paused,
		record.PauseFailures,
		string(encodedKinds),
		record.LogPath,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("history: index run: %w", err)
	}
	return record, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, status, started_at, finished_at, successes, failures, paused, pause_failures, error_kinds, log_path
		FROM sync_runs
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			run    RunRecord
			status string
			kinds  string
		)
		if err := rows.Scan(
			&run.ID,
			&status,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Successes,
			&run.Failures,
			&run.Paused,
			&run.PauseFailures,
			&kinds,
			&run.LogPath,
		); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		run.Status = model.RunState(status)
		if err := json.Unmarshal([]byte(kinds), &run.ErrorKinds); err != nil {
			return nil, fmt.Errorf("history: decode error kinds for %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
