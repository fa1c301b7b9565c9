package shared

import (
	"path/filepath"
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("parseMigrationName", func(t *testing.T) {
		tc := []struct {
			file      string
			version   int
			name      string
			direction string
			ok        bool
		}{
			{file: "0001_cache_entries_up.sql", version: 1, name: "cache_entries", direction: "up", ok: true},
			{file: "0002_sync_runs_down.sql", version: 2, name: "sync_runs", direction: "down", ok: true},
			{file: "0003_sideways.sql", ok: false},
			{file: "abc_cache_up.sql", ok: false},
			{file: "README.md", ok: false},
		}

		for _, tt := range tc {
			version, name, direction, ok := parseMigrationName(tt.file)
			if ok != tt.ok {
				t.Errorf("parseMigrationName(%q) ok = %v, want %v", tt.file, ok, tt.ok)
				continue
			}
			if ok && (version != tt.version || name != tt.name || direction != tt.direction) {
				t.Errorf("parseMigrationName(%q) = (%d, %q, %q)", tt.file, version, name, direction)
			}
		}
	})

	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}

		for _, m := range migrations {
			if m.Up == "" || m.Down == "" {
				t.Errorf("migration version %d is incomplete", m.Version)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		if _, err := db.Exec("SELECT key, value, expires_at FROM cache_entries LIMIT 1"); err != nil {
			t.Errorf("cache_entries table should exist after migrations: %v", err)
		}
		if _, err := db.Exec("SELECT id, mode FROM sync_runs LIMIT 1"); err != nil {
			t.Errorf("sync_runs table should exist after migrations: %v", err)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		var after int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&after); err != nil {
			t.Fatalf("failed to query schema_migrations after rollback: %v", err)
		}
		if after != count-1 {
			t.Errorf("expected %d applied migrations after rollback, got %d", count-1, after)
		}
		if _, err := db.Exec("SELECT 1 FROM sync_runs"); err == nil {
			t.Error("sync_runs should be dropped by rollback")
		}
	})

	t.Run("Rollback with nothing applied", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()
		db.SetMaxOpenConns(1)

		if _, err := db.Exec("CREATE TABLE schema_migrations (version INTEGER PRIMARY KEY)"); err != nil {
			t.Fatalf("failed to create table: %v", err)
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing to roll back")
		}
	})

	t.Run("Idempotent Migrations On File Database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "cache.db")
		db, err := NewDatabase(path)
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		for range 2 {
			if err := RunMigrations(db); err != nil {
				t.Fatalf("failed to run migrations: %v", err)
			}
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})
}
