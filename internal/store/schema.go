package store

const schema = `
CREATE TABLE IF NOT EXISTS sweeps (
    run_id TEXT PRIMARY KEY,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    dry_run BOOLEAN NOT NULL,
    examined INTEGER NOT NULL,
    retired INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    error TEXT
);

CREATE TABLE IF NOT EXISTS actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    torrent_id TEXT NOT NULL,
    name TEXT,
    reason TEXT NOT NULL,
    dry_run BOOLEAN NOT NULL,
    already_removed BOOLEAN NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id);
CREATE INDEX IF NOT EXISTS idx_actions_reason ON actions(reason);
CREATE INDEX IF NOT EXISTS idx_actions_torrent ON actions(torrent_id);
`
