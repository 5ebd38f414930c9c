package db

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_snapshots (
		id              TEXT PRIMARY KEY,
		created_at      TIMESTAMP NOT NULL,
		path            TEXT NOT NULL,
		records         INTEGER NOT NULL,
		unresolved_skus INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_inventory_snapshots_created_at ON inventory_snapshots (created_at)`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id             TEXT PRIMARY KEY,
		status         TEXT NOT NULL,
		started_at     TIMESTAMP NOT NULL,
		finished_at    TIMESTAMP NOT NULL,
		successes      INTEGER NOT NULL,
		failures       INTEGER NOT NULL,
		paused         INTEGER NOT NULL,
		pause_failures INTEGER NOT NULL,
		error_kinds    TEXT NOT NULL,
		log_path       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_runs_started_at ON sync_runs (started_at)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS inventory_snapshots (
		id              VARCHAR(64) PRIMARY KEY,
		created_at      DATETIME(6) NOT NULL,
		path            VARCHAR(1024) NOT NULL,
		records         INT NOT NULL,
		unresolved_skus INT NOT NULL DEFAULT 0,
		INDEX idx_inventory_snapshots_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sync_runs (
		id             VARCHAR(64) PRIMARY KEY,
		status         VARCHAR(16) NOT NULL,
		started_at     DATETIME(6) NOT NULL,
		finished_at    DATETIME(6) NOT NULL,
		successes      INT NOT NULL,
		failures       INT NOT NULL,
		paused         INT NOT NULL,
		pause_failures INT NOT NULL,
		error_kinds    TEXT NOT NULL,
		log_path       VARCHAR(1024) NOT NULL,
		INDEX idx_sync_runs_started_at (started_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}
