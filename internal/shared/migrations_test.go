package shared

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func migratedDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func hasTable(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&n); err != nil {
		t.Fatalf("failed to inspect schema: %v", err)
	}
	return n == 1
}

func TestMigrationRunner(t *testing.T) {
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
		if !strings.Contains(migrations[0].Up, "response_cache") || !strings.Contains(migrations[0].Down, "response_cache") {
			t.Error("expected the first migration to create and drop response_cache")
		}
	})

	t.Run("creates response_cache and its kind index", func(t *testing.T) {
		db := migratedDB(t)

		if !hasTable(t, db, "table", "response_cache") {
			t.Error("response_cache table should exist after migrations")
		}
		if !hasTable(t, db, "index", "idx_response_cache_kind") {
			t.Error("kind index should exist after migrations")
		}
	})

	t.Run("fingerprint is the primary key", func(t *testing.T) {
		db := migratedDB(t)
		insert := "INSERT INTO response_cache (fingerprint, kind, subject, payload) VALUES (?, 'artist-origin', ?, ?)"

		if _, err := db.Exec(insert, "fp", "Björk", `{"status":"not_found"}`); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		if _, err := db.Exec(insert, "fp", "bjork", `{"status":"success"}`); err == nil {
			t.Error("expected a second row under the same fingerprint to be rejected")
		}
	})

	t.Run("created_at defaults to insertion time", func(t *testing.T) {
		db := migratedDB(t)
		if _, err := db.Exec("INSERT INTO response_cache (fingerprint, kind, subject, payload) VALUES ('fp', 'artist-origin', 'A', '{}')"); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		var created sql.NullString
		if err := db.QueryRow("SELECT created_at FROM response_cache WHERE fingerprint = 'fp'").Scan(&created); err != nil {
			t.Fatalf("failed to read created_at: %v", err)
		}
		if !created.Valid || created.String == "" {
			t.Error("expected created_at to be filled in")
		}
	})

	t.Run("payload is required", func(t *testing.T) {
		db := migratedDB(t)
		if _, err := db.Exec("INSERT INTO response_cache (fingerprint, kind, subject) VALUES ('fp', 'artist-origin', 'A')"); err == nil {
			t.Error("expected an entry without payload to be rejected")
		}
	})

	t.Run("rollback drops response_cache", func(t *testing.T) {
		db := migratedDB(t)
		if _, err := db.Exec("INSERT INTO response_cache (fingerprint, kind, subject, payload) VALUES ('fp', 'artist-origin', 'A', '{}')"); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if hasTable(t, db, "table", "response_cache") || hasTable(t, db, "index", "idx_response_cache_kind") {
			t.Error("expected rollback to drop response_cache and its index")
		}

		var applied int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		if applied != 0 {
			t.Errorf("expected no applied migrations after rollback, got %d", applied)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to re-apply migrations: %v", err)
		}
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM response_cache").Scan(&n); err != nil || n != 0 {
			t.Errorf("expected an empty response_cache after re-applying, got %d (%v)", n, err)
		}
	})

	t.Run("rerunning keeps cached entries", func(t *testing.T) {
		db := migratedDB(t)
		if _, err := db.Exec("INSERT INTO response_cache (fingerprint, kind, subject, payload) VALUES ('fp', 'artist-origin', 'A', '{}')"); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM response_cache").Scan(&n); err != nil || n != 1 {
			t.Errorf("expected the cached entry to survive, got %d (%v)", n, err)
		}
		migrations, _ := loadMigrations()
		var applied int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil || applied != len(migrations) {
			t.Errorf("expected %d applied migrations, got %d (%v)", len(migrations), applied, err)
		}
	})

	t.Run("rollback with nothing applied fails", func(t *testing.T) {
		db := migratedDB(t)
		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected an error when no migrations remain")
		}
	})
}

func TestOpenCache(t *testing.T) {
	t.Run("creates schema at configured path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "geolist", "cache.db")

		db, err := OpenCache(CacheConfig{Path: path, MaxOpenConns: 1})
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		defer db.Close()

		if _, err := db.Exec("SELECT fingerprint, kind, subject, payload, created_at FROM response_cache LIMIT 1"); err != nil {
			t.Errorf("response_cache table should exist: %v", err)
		}
	})

	t.Run("rejects a file that is not a database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")
		if err := os.WriteFile(path, []byte(strings.Repeat("not a sqlite file ", 300)), 0644); err != nil {
			t.Fatalf("failed to write garbage file: %v", err)
		}

		_, err := OpenCache(CacheConfig{Path: path})
		if err == nil {
			t.Fatal("expected error opening a corrupt cache file")
		}
		if !IsCorruptDatabase(err) {
			t.Errorf("expected a corruption error, got %v", err)
		}
	})
}

func TestEnsureCache(t *testing.T) {
	t.Run("opens a healthy cache without moving it", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")

		db, moved, err := EnsureCache(CacheConfig{Path: path})
		if err != nil {
			t.Fatalf("failed to open cache: %v", err)
		}
		defer db.Close()
		if moved != "" {
			t.Errorf("expected nothing moved, got %q", moved)
		}
	})

	t.Run("replaces a file that is not a database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cache.db")
		garbage := strings.Repeat("not a sqlite file ", 300)
		if err := os.WriteFile(path, []byte(garbage), 0644); err != nil {
			t.Fatalf("failed to write garbage file: %v", err)
		}

		db, moved, err := EnsureCache(CacheConfig{Path: path})
		if err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}
		defer db.Close()

		if !strings.HasPrefix(moved, path+".corrupt-") {
			t.Errorf("expected corrupt file moved next to the cache, got %q", moved)
		}
		kept, err := os.ReadFile(moved)
		if err != nil || string(kept) != garbage {
			t.Errorf("expected corrupt contents preserved, got err=%v", err)
		}
		if _, err := db.Exec("INSERT INTO response_cache (fingerprint, kind, subject, payload) VALUES ('fp', 'artist-origin', 'A', '{}')"); err != nil {
			t.Errorf("expected a writable response_cache after recovery: %v", err)
		}
	})

	t.Run("returns other failures unchanged", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write blocker: %v", err)
		}

		_, moved, err := EnsureCache(CacheConfig{Path: filepath.Join(blocker, "cache.db")})
		if err == nil {
			t.Fatal("expected error when the cache directory is a file")
		}
		if moved != "" || IsCorruptDatabase(err) {
			t.Errorf("expected a plain open failure, got moved=%q err=%v", moved, err)
		}
	})
}
