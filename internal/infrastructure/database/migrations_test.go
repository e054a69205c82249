package database

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

// useMigrations swaps the registered migrations for the duration of a test.
func useMigrations(t *testing.T, files fstest.MapFS) {
	t.Helper()

	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS = origFS
		MigrationsDir = origDir
	})

	MigrationsFS = files
	MigrationsDir = "."
}

func sampleMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_090000_create_readings.up.sql": {
			Data: []byte("CREATE TABLE readings (id TEXT PRIMARY KEY, value REAL);"),
		},
		"20260101_090000_create_readings.down.sql": {
			Data: []byte("DROP TABLE readings;"),
		},
		"20260102_090000_add_index.up.sql": {
			Data: []byte("CREATE INDEX idx_readings_value ON readings(value);"),
		},
		"README.md": {Data: []byte("not a migration")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()

	var count int
	if err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, sampleMigrations())
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "readings") {
		t.Fatal("table readings not created")
	}

	states, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("Status() = %d migrations, want 2", len(states))
	}
	for _, st := range states {
		if st.Pending() || st.Modified {
			t.Errorf("state %+v, want applied and unmodified", st)
		}
	}
	if states[0].Name != "create_readings" || states[1].Name != "add_index" {
		t.Errorf("names = %q, %q; want create_readings, add_index", states[0].Name, states[1].Name)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_ModifiedScript(t *testing.T) {
	files := sampleMigrations()
	useMigrations(t, files)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	files["20260102_090000_add_index.up.sql"] = &fstest.MapFile{
		Data: []byte("CREATE INDEX idx_readings_id_value ON readings(id, value);"),
	}

	states, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if states[0].Modified || !states[1].Modified {
		t.Errorf("Modified = %v, %v; want false, true", states[0].Modified, states[1].Modified)
	}
	if err := db.Migrate(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Migrate() error = %v, want ErrChecksumMismatch", err)
	}
}

func TestRollback(t *testing.T) {
	files := sampleMigrations()
	delete(files, "20260102_090000_add_index.up.sql")
	useMigrations(t, files)

	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	m, err := db.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if m == nil || m.Version != "20260101_090000" {
		t.Fatalf("Rollback() = %+v, want 20260101_090000", m)
	}
	if tableExists(t, db, "readings") {
		t.Error("table readings still exists after Rollback()")
	}

	states, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(states) != 1 || !states[0].Pending() {
		t.Errorf("Status() = %+v, want one pending migration", states)
	}

	m, err = db.Rollback(ctx)
	if err != nil || m != nil {
		t.Errorf("Rollback() with nothing applied = %+v, %v; want nil, nil", m, err)
	}
}

func TestRollback_NoDownScript(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_090000_only_up.up.sql": {Data: []byte("CREATE TABLE x (v INTEGER);")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.Rollback(ctx); !errors.Is(err, ErrNoDownScript) {
		t.Errorf("Rollback() error = %v, want ErrNoDownScript", err)
	}
	if !tableExists(t, db, "x") {
		t.Error("table x dropped by a failed Rollback()")
	}
}

func TestMigrate_FailureRollsBack(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_090000_good.up.sql": {Data: []byte("CREATE TABLE good (v INTEGER);")},
		"20260102_090000_bad.up.sql":  {Data: []byte("CREATE TABLE broken (;")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error for invalid SQL, got nil")
	}

	states, err := db.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if len(states) != 2 || states[0].Pending() || !states[1].Pending() {
		t.Errorf("Status() = %+v, want good applied and bad pending", states)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil)
	MigrationsFS = nil

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
}

func TestLoadMigrations(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260118_120000_initial_schema.up.sql":   {Data: []byte("SELECT 1;")},
		"20260118_120000_initial_schema.down.sql": {Data: []byte("SELECT 2;")},
		"20260119_080000.up.sql":                  {Data: []byte("SELECT 3;")},
		"20260120_080000_plain.sql":               {Data: []byte("ignored")},
		"nounderscore.up.sql":                     {Data: []byte("ignored")},
		"README.md":                               {Data: []byte("ignored")},
	})

	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("loadMigrations() = %d migrations, want 2", len(migrations))
	}

	first, second := migrations[0], migrations[1]
	if first.Version != "20260118_120000" || first.Name != "initial_schema" {
		t.Errorf("first = %s %s, want 20260118_120000 initial_schema", first.Version, first.Name)
	}
	if first.Up != "SELECT 1;" || first.Down != "SELECT 2;" {
		t.Errorf("first scripts = %q / %q", first.Up, first.Down)
	}
	if second.Name != "20260119_080000" {
		t.Errorf("unnamed migration Name = %q, want its version", second.Name)
	}
	if second.Down != "" {
		t.Errorf("second Down = %q, want empty", second.Down)
	}
}

func TestLoadMigrations_DownWithoutUp(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"20260101_090000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	})

	if _, err := loadMigrations(); err == nil {
		t.Error("loadMigrations() accepted a down script without an up script")
	}
}
