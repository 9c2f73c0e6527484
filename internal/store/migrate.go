package store

import "fmt"

// migration is one forward-only schema step. Unlike KafClaw's best-effort
// repeated CREATE TABLE IF NOT EXISTS / ALTER TABLE style, migrations here
// are numbered and tracked in schema_migrations so each runs exactly once.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "memory_chunks",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS memory_chunks (
				id TEXT PRIMARY KEY,
				source TEXT NOT NULL,
				heading TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL,
				embedding BLOB,
				owner TEXT NOT NULL DEFAULT 'shared',
				scope_kind TEXT NOT NULL DEFAULT 'global',
				scope_id TEXT NOT NULL DEFAULT '',
				tags TEXT NOT NULL DEFAULT '',
				version INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_memory_chunks_scope ON memory_chunks(scope_kind, scope_id)`,
			`CREATE INDEX IF NOT EXISTS idx_memory_chunks_source_owner_scope ON memory_chunks(source, owner, scope_kind, scope_id)`,
			`CREATE VIRTUAL TABLE IF NOT EXISTS memory_chunks_fts USING fts5(
				heading, content, content='memory_chunks', content_rowid='rowid'
			)`,
			`CREATE TRIGGER IF NOT EXISTS memory_chunks_ai AFTER INSERT ON memory_chunks BEGIN
				INSERT INTO memory_chunks_fts(rowid, heading, content) VALUES (new.rowid, new.heading, new.content);
			END`,
			`CREATE TRIGGER IF NOT EXISTS memory_chunks_ad AFTER DELETE ON memory_chunks BEGIN
				INSERT INTO memory_chunks_fts(memory_chunks_fts, rowid, heading, content) VALUES ('delete', old.rowid, old.heading, old.content);
			END`,
			`CREATE TRIGGER IF NOT EXISTS memory_chunks_au AFTER UPDATE ON memory_chunks BEGIN
				INSERT INTO memory_chunks_fts(memory_chunks_fts, rowid, heading, content) VALUES ('delete', old.rowid, old.heading, old.content);
				INSERT INTO memory_chunks_fts(rowid, heading, content) VALUES (new.rowid, new.heading, new.content);
			END`,
		},
	},
	{
		version: 2,
		name:    "learner_records",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS learner_records (
				id TEXT PRIMARY KEY,
				task_summary TEXT NOT NULL,
				tokens TEXT NOT NULL DEFAULT '',
				tools_used TEXT NOT NULL DEFAULT '',
				outcome TEXT NOT NULL,
				lesson TEXT NOT NULL DEFAULT '',
				duration_ms INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_learner_records_outcome ON learner_records(outcome)`,
			`CREATE INDEX IF NOT EXISTS idx_learner_records_created ON learner_records(created_at)`,
		},
	},
	{
		version: 3,
		name:    "cron_jobs",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS cron_jobs (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL UNIQUE,
				schedule_kind TEXT NOT NULL,
				schedule_expr TEXT NOT NULL,
				payload TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT 1,
				next_run_at DATETIME,
				last_run_at DATETIME,
				consecutive_errors INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS idx_cron_jobs_next_run ON cron_jobs(enabled, next_run_at)`,
			`CREATE TABLE IF NOT EXISTS cron_runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				job_id TEXT NOT NULL REFERENCES cron_jobs(id) ON DELETE CASCADE,
				started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				finished_at DATETIME,
				success BOOLEAN,
				error_text TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_cron_runs_job ON cron_runs(job_id)`,
		},
	},
	{
		version: 4,
		name:    "learner_records_metrics",
		stmts: []string{
			`ALTER TABLE learner_records ADD COLUMN iterations INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE learner_records ADD COLUMN tool_calls INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE learner_records ADD COLUMN token_usage INTEGER NOT NULL DEFAULT 0`,
		},
	},
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied := map[int]bool{}
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			rows.Close()
			return err
		}
		applied[v] = true
	}
	rows.Close()

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d (%s): %w", m.version, m.name, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("applying migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d (%s): %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// AppliedMigrations returns the count of migrations applied to this
// database, mainly for diagnostics and tests.
func (s *Store) AppliedMigrations() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n)
	return n, err
}
