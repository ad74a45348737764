package storage

import "log"

const schema = `
CREATE TABLE IF NOT EXISTS groups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS alerters (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    url TEXT,
    username TEXT,
    password TEXT
);

CREATE TABLE IF NOT EXISTS checks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    on_status_page INTEGER NOT NULL DEFAULT 1,
    interval_seconds INTEGER NOT NULL,
    down_interval_seconds INTEGER,
    site_threshold INTEGER NOT NULL DEFAULT 1,
    passing_threshold INTEGER NOT NULL DEFAULT 1,
    failing_threshold INTEGER NOT NULL DEFAULT 1,
    silent INTEGER NOT NULL DEFAULT 0,
    group_id INTEGER REFERENCES groups(id) ON DELETE SET NULL,
    alerter_id INTEGER REFERENCES alerters(id) ON DELETE SET NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS check_sites (
    check_id INTEGER NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
    site TEXT NOT NULL,
    PRIMARY KEY (check_id, site)
);

CREATE TABLE IF NOT EXISTS ping_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    host TEXT NOT NULL,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS http_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    method TEXT NOT NULL DEFAULT 'GET',
    headers TEXT,
    expected_status INTEGER NOT NULL DEFAULT 200,
    content_substring TEXT,
    body_digest TEXT,
    json_path TEXT,
    json_path_expected TEXT,
    max_duration_seconds INTEGER,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS tcp_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS udp_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    host TEXT NOT NULL,
    port INTEGER NOT NULL,
    message BLOB NOT NULL,
    content BLOB NOT NULL,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS dns_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    record TEXT NOT NULL,
    expected TEXT NOT NULL,
    resolver TEXT,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS tls_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    host TEXT NOT NULL,
    port INTEGER NOT NULL DEFAULT 443,
    warn_days INTEGER NOT NULL DEFAULT 14,
    critical_days INTEGER NOT NULL DEFAULT 3,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS whois_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    domain TEXT NOT NULL,
    attribute TEXT NOT NULL DEFAULT 'Registry Expiry Date',
    warn_days INTEGER NOT NULL DEFAULT 30,
    critical_days INTEGER NOT NULL DEFAULT 7,
    timeout_seconds INTEGER
);

CREATE TABLE IF NOT EXISTS deadmanswitch_specs (
    check_id INTEGER PRIMARY KEY REFERENCES checks(id) ON DELETE CASCADE,
    stale_after_seconds INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS deadmanswitch_logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    check_id INTEGER NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS site_outages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    check_id INTEGER NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
    site TEXT NOT NULL,
    passing_strikes INTEGER NOT NULL DEFAULT 0,
    failing_strikes INTEGER NOT NULL DEFAULT 0,
    started_on DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ended_on DATETIME
);

-- Enforces invariant #1: at most one open site outage per (check, site).
CREATE UNIQUE INDEX IF NOT EXISTS idx_site_outages_open
    ON site_outages(check_id, site) WHERE ended_on IS NULL;

CREATE TABLE IF NOT EXISTS outages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    check_id INTEGER NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
    started_on DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    ended_on DATETIME,
    comment TEXT
);

-- Enforces invariant #2: at most one open global outage per check.
CREATE UNIQUE INDEX IF NOT EXISTS idx_outages_open
    ON outages(check_id) WHERE ended_on IS NULL;

CREATE TABLE IF NOT EXISTS timelines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid TEXT NOT NULL UNIQUE,
    outage_id INTEGER NOT NULL REFERENCES outages(id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    content TEXT NOT NULL,
    user_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
    published_on DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    check_id INTEGER NOT NULL REFERENCES checks(id) ON DELETE CASCADE,
    site TEXT NOT NULL,
    status INTEGER NOT NULL,
    message TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    outage_id INTEGER REFERENCES site_outages(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_sites_site ON check_sites(site);
CREATE INDEX IF NOT EXISTS idx_events_check_site_created ON events(check_id, site, created_at);
CREATE INDEX IF NOT EXISTS idx_events_outage ON events(outage_id);
CREATE INDEX IF NOT EXISTS idx_site_outages_check ON site_outages(check_id);
CREATE INDEX IF NOT EXISTS idx_outages_check ON outages(check_id);
CREATE INDEX IF NOT EXISTS idx_timelines_outage ON timelines(outage_id);
CREATE INDEX IF NOT EXISTS idx_deadmanswitch_logs_check ON deadmanswitch_logs(check_id, created_at);
`

func (db *DB) migrate() error {
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	log.Println("Database migrations completed")
	return nil
}
