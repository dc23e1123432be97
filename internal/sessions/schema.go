package sessions

// schemaVersion is bumped whenever the table layout changes. The database is
// transient bookkeeping, not an archive; users clear it to adopt a new
// schema.
const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS bootstrap_sessions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL UNIQUE,
    root TEXT NOT NULL,
    manifest_path TEXT,
    status TEXT NOT NULL,
    package_count INTEGER NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bootstrap_sessions_root
    ON bootstrap_sessions (root);
CREATE INDEX IF NOT EXISTS idx_bootstrap_sessions_status
    ON bootstrap_sessions (status);

CREATE TABLE IF NOT EXISTS schema_info (
    version INTEGER NOT NULL
);
`
