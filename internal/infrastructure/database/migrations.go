package database

import (
	"cmp"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"
)

var (
	// ErrChecksumMismatch means an applied migration's up script no longer
	// matches what was recorded when it ran.
	ErrChecksumMismatch = errors.New("database: applied migration was modified")

	// ErrNoDownScript means the migration to roll back has no .down.sql file.
	ErrNoDownScript = errors.New("database: migration has no down script")
)

// MigrationsFS holds the migration files. The top-level migrations package
// registers its embedded files here from an init function.
var MigrationsFS fs.FS

// MigrationsDir is the directory within MigrationsFS holding the files.
var MigrationsDir = "migrations"

// migrationFile matches YYYYMMDD_HHMMSS[_description].(up|down).sql.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})(?:_([^.]+))?\.(up|down)\.sql$`)

// Migration is one schema change loaded from MigrationsFS.
type Migration struct {
	Version string
	Name    string
	Up      string
	Down    string
}

// Checksum identifies the up script's content.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.Up))
	return hex.EncodeToString(sum[:])
}

// MigrationState is a migration as seen by both the files and the database.
type MigrationState struct {
	Version   string
	Name      string
	AppliedAt time.Time // zero while pending
	Modified  bool      // applied, but the up script changed since
}

// Pending reports whether the migration has not been applied yet.
func (s MigrationState) Pending() bool {
	return s.AppliedAt.IsZero()
}

type appliedMigration struct {
	checksum  string
	appliedAt time.Time
}

// Migrate applies pending migrations oldest first, each in its own
// transaction, and stops at the first failure. It refuses to run when an
// already applied migration has been edited (ErrChecksumMismatch).
func (db *DB) Migrate(ctx context.Context) error {
	migrations, applied, err := db.migrationPlan(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if rec, ok := applied[m.Version]; ok {
			if rec.checksum != m.Checksum() {
				return fmt.Errorf("%w: %s (%s)", ErrChecksumMismatch, m.Version, m.Name)
			}
			continue
		}

		err := db.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
				m.Version, m.Name, m.Checksum(), time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// Status lists every known migration with its applied state, oldest first.
func (db *DB) Status(ctx context.Context) ([]MigrationState, error) {
	migrations, applied, err := db.migrationPlan(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]MigrationState, 0, len(migrations))
	for _, m := range migrations {
		st := MigrationState{Version: m.Version, Name: m.Name}
		if rec, ok := applied[m.Version]; ok {
			st.AppliedAt = rec.appliedAt
			st.Modified = rec.checksum != m.Checksum()
		}
		states = append(states, st)
	}
	return states, nil
}

// Rollback reverts the most recently applied migration and returns it.
// It returns nil when nothing has been applied.
func (db *DB) Rollback(ctx context.Context) (*Migration, error) {
	migrations, _, err := db.migrationPlan(ctx)
	if err != nil {
		return nil, err
	}

	var version string
	err = db.QueryRowContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding latest migration: %w", err)
	}

	i := slices.IndexFunc(migrations, func(m Migration) bool { return m.Version == version })
	if i < 0 {
		return nil, fmt.Errorf("migration %s is applied but has no file", version)
	}
	m := migrations[i]
	if m.Down == "" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNoDownScript, m.Version, m.Name)
	}

	err = db.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = ?", m.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back %s (%s): %w", m.Version, m.Name, err)
	}
	return &m, nil
}

// migrationPlan loads the migration files and the applied records.
func (db *DB) migrationPlan(ctx context.Context) ([]Migration, map[string]appliedMigration, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			checksum   TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)
	`); err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version, checksum, applied_at FROM schema_migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]appliedMigration)
	for rows.Next() {
		var version, checksum, at string
		if err := rows.Scan(&version, &checksum, &at); err != nil {
			return nil, nil, fmt.Errorf("scanning migration row: %w", err)
		}
		appliedAt, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, nil, fmt.Errorf("migration %s: bad applied_at %q", version, at)
		}
		applied[version] = appliedMigration{checksum: checksum, appliedAt: appliedAt}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating migrations: %w", err)
	}
	return migrations, applied, nil
}

func (db *DB) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// loadMigrations reads MigrationsFS, pairing up and down scripts by version.
// Files that do not follow the naming scheme are ignored.
func loadMigrations() ([]Migration, error) {
	if MigrationsFS == nil {
		return nil, nil
	}

	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, entry := range entries {
		match := migrationFile.FindStringSubmatch(entry.Name())
		if entry.IsDir() || match == nil {
			continue
		}
		version, name, direction := match[1], cmp.Or(match[2], match[1]), match[3]

		script, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		}
		if direction == "up" {
			m.Up = string(script)
		} else {
			m.Down = string(script)
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %s has no up script", m.Version)
		}
		migrations = append(migrations, *m)
	}
	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return migrations, nil
}
