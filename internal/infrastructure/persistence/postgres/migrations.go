package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a migrator with the embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations, each in its own transaction.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf(
				"INSERT INTO %s (version, name) VALUES ($1, $2)",
				m.tableName,
			)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// Rollback rolls back the last applied migration.
func (m *Migrator) Rollback(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	var lastVersion int
	for v := range applied {
		if v > lastVersion {
			lastVersion = v
		}
	}
	if lastVersion == 0 {
		return nil
	}

	var migration *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == lastVersion {
			migration = &m.migrations[i]
			break
		}
	}
	if migration == nil || migration.DownSQL == "" {
		return fmt.Errorf("%w: missing down SQL for migration %d", ErrMigrationFailed, lastVersion)
	}

	return m.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, migration.DownSQL); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", lastVersion, err)
		}
		deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE version = $1", m.tableName)
		_, err := tx.Exec(ctx, deleteQuery, lastVersion)
		return err
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// EMBEDDED MIGRATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_courses",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_enrollments",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_assessments",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_notifications",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE courses (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	instructor_id TEXT NOT NULL,
	lesson_ids    JSONB NOT NULL DEFAULT '[]',
	is_published  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_courses_instructor ON courses (instructor_id);
`

const migration001Down = `
DROP TABLE IF EXISTS courses;
`

const migration002Up = `
CREATE TABLE enrollments (
	id                    TEXT PRIMARY KEY,
	student_id            TEXT NOT NULL,
	course_id             TEXT NOT NULL REFERENCES courses (id),
	enrolled_at           TIMESTAMPTZ NOT NULL,
	progress              JSONB NOT NULL DEFAULT '[]',
	completion_percentage INTEGER NOT NULL DEFAULT 0,
	is_completed          BOOLEAN NOT NULL DEFAULT FALSE,
	completed_at          TIMESTAMPTZ,
	certificate_issued    BOOLEAN NOT NULL DEFAULT FALSE,
	last_accessed_at      TIMESTAMPTZ NOT NULL,
	version               INTEGER NOT NULL DEFAULT 1,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	CONSTRAINT uq_enrollments_student_course UNIQUE (student_id, course_id)
);

CREATE INDEX idx_enrollments_student ON enrollments (student_id);
CREATE INDEX idx_enrollments_course ON enrollments (course_id);
`

const migration002Down = `
DROP TABLE IF EXISTS enrollments;
`

const migration003Up = `
CREATE TABLE assessments (
	id                 TEXT PRIMARY KEY,
	course_id          TEXT NOT NULL REFERENCES courses (id),
	instructor_id      TEXT NOT NULL,
	title              TEXT NOT NULL,
	description        TEXT NOT NULL DEFAULT '',
	questions          JSONB NOT NULL DEFAULT '[]',
	time_limit_minutes INTEGER NOT NULL DEFAULT 0,
	passing_score      INTEGER NOT NULL DEFAULT 60,
	attempts           INTEGER NOT NULL DEFAULT 3,
	is_published       BOOLEAN NOT NULL DEFAULT FALSE,
	due_date           TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_assessments_course ON assessments (course_id);

CREATE TABLE submissions (
	id                 TEXT PRIMARY KEY,
	assessment_id      TEXT NOT NULL REFERENCES assessments (id),
	student_id         TEXT NOT NULL,
	answers            JSONB NOT NULL DEFAULT '[]',
	score              INTEGER NOT NULL,
	percentage         INTEGER NOT NULL,
	is_passed          BOOLEAN NOT NULL,
	attempt_number     INTEGER NOT NULL,
	time_spent_minutes INTEGER NOT NULL DEFAULT 0,
	submitted_at       TIMESTAMPTZ NOT NULL,

	CONSTRAINT uq_submissions_attempt UNIQUE (assessment_id, student_id, attempt_number)
);

CREATE INDEX idx_submissions_student ON submissions (assessment_id, student_id);
`

const migration003Down = `
DROP TABLE IF EXISTS submissions;
DROP TABLE IF EXISTS assessments;
`

const migration004Up = `
CREATE TABLE notifications (
	id                    TEXT PRIMARY KEY,
	recipient_id          TEXT NOT NULL,
	sender_id             TEXT NOT NULL DEFAULT '',
	type                  TEXT NOT NULL,
	title                 TEXT NOT NULL,
	message               TEXT NOT NULL,
	related_course_id     TEXT NOT NULL DEFAULT '',
	related_assessment_id TEXT NOT NULL DEFAULT '',
	is_read               BOOLEAN NOT NULL DEFAULT FALSE,
	read_at               TIMESTAMPTZ,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX idx_notifications_recipient ON notifications (recipient_id, created_at DESC);
CREATE INDEX idx_notifications_unread ON notifications (recipient_id) WHERE NOT is_read;
`

const migration004Down = `
DROP TABLE IF EXISTS notifications;
`
