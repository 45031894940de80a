package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lawnchairsociety/towermaze/internal/grid"
	"github.com/lawnchairsociety/towermaze/internal/maze"
)

// getPostgresTestConfig returns PostgreSQL config if available, nil otherwise.
// Set these environment variables to run PostgreSQL tests:
//
//	TOWERMAZE_TEST_POSTGRES (any value enables the tests)
//	TOWERMAZE_TEST_POSTGRES_HOST (default: localhost)
//	TOWERMAZE_TEST_POSTGRES_PORT (default: 5432)
//	TOWERMAZE_TEST_POSTGRES_USER (default: towermaze)
//	TOWERMAZE_TEST_POSTGRES_PASSWORD (default: towermaze)
//	TOWERMAZE_TEST_POSTGRES_DATABASE (default: towermaze_test)
func getPostgresTestConfig() *Config {
	if os.Getenv("TOWERMAZE_TEST_POSTGRES") == "" {
		return nil
	}

	env := func(key, def string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return def
	}

	port := 5432
	fmt.Sscanf(env("TOWERMAZE_TEST_POSTGRES_PORT", "5432"), "%d", &port)

	pg := DefaultPostgresConfig()
	pg.Host = env("TOWERMAZE_TEST_POSTGRES_HOST", "localhost")
	pg.Port = port
	pg.User = env("TOWERMAZE_TEST_POSTGRES_USER", "towermaze")
	pg.Password = env("TOWERMAZE_TEST_POSTGRES_PASSWORD", "towermaze")
	pg.Database = env("TOWERMAZE_TEST_POSTGRES_DATABASE", "towermaze_test")
	pg.ConnMaxLifetime = time.Minute

	return &Config{Driver: "postgres", Postgres: pg}
}

// testDatabases returns a SQLite store and, when configured, a PostgreSQL
// store with the mazes table emptied.
func testDatabases(t *testing.T) map[string]*Database {
	t.Helper()
	dbs := make(map[string]*Database)

	sqliteDB, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open SQLite database: %v", err)
	}
	dbs["sqlite"] = sqliteDB

	if pgConfig := getPostgresTestConfig(); pgConfig != nil {
		pgDB, err := OpenWithConfig(*pgConfig)
		if err != nil {
			t.Logf("PostgreSQL not available: %v", err)
		} else {
			pgDB.db.Exec("DELETE FROM mazes")
			dbs["postgres"] = pgDB
		}
	}

	t.Cleanup(func() {
		for name, db := range dbs {
			if name == "postgres" {
				db.db.Exec("DELETE FROM mazes")
			}
			db.Close()
		}
	})
	return dbs
}

func testSnapshot(fingerprint string, pathSeed int64) maze.Snapshot {
	return maze.Snapshot{
		Fingerprint:   fingerprint,
		Width:         3,
		Length:        2,
		Start:         grid.Pos{X: 0, Z: 0},
		End:           grid.Pos{X: 2, Z: 1},
		Gaps:          []grid.Pos{{X: 1, Z: 0}},
		Path:          []grid.Pos{{X: 0, Z: 0}, {X: 0, Z: 1}, {X: 1, Z: 1}, {X: 2, Z: 1}},
		Subgoals:      []grid.Pos{{X: 0, Z: 0}, {X: 0, Z: 1}, {X: 2, Z: 1}},
		Waypoints:     []grid.Pos{{X: 2, Z: 0}},
		GapsRequested: 1,
		GapsRemoved:   1,
		MaxPathLength: 5,
		PathSeed:      pathSeed,
		MaterialSeed:  9,
		Layout:        []string{"S#.", "*oE"},
	}
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	var count int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM mazes").Scan(&count); err != nil {
		t.Errorf("Failed to query mazes table: %v", err)
	}
	if _, ok := db.Dialect().(*SQLiteDialect); !ok {
		t.Errorf("Dialect() = %T, want *SQLiteDialect", db.Dialect())
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	db, err := Open(nestedPath)
	if err != nil {
		t.Fatalf("Failed to open database with nested path: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nestedPath); os.IsNotExist(err) {
		t.Error("Database file was not created in nested directory")
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if _, _, err := db.SaveMaze(testSnapshot("abc", 1)); err != nil {
		t.Fatalf("SaveMaze() failed: %v", err)
	}
	db.Close()

	db, err = Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	if count, _ := db.CountMazes(); count != 1 {
		t.Errorf("CountMazes() = %d after reopen, want 1", count)
	}
}

func TestOpenEnablesWAL(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var journalMode string
	if err := db.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to check journal_mode pragma: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected WAL mode, got %s", journalMode)
	}
}

func TestOpenWithConfigUnknownDriver(t *testing.T) {
	_, err := OpenWithConfig(Config{Driver: "mysql"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("OpenWithConfig(mysql) error = %v, want ErrUnknownDriver", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	pg := DefaultPostgresConfig()
	pg.User = "maze"
	pg.Password = "secret"
	pg.Database = "mazes"

	want := "host=localhost port=5432 user=maze password=secret dbname=mazes sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}

func TestSaveAndGetMaze(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			snap := testSnapshot("fp-save", 42)

			rec, created, err := db.SaveMaze(snap)
			if err != nil {
				t.Fatalf("SaveMaze() failed: %v", err)
			}
			if !created {
				t.Error("first save should create a record")
			}
			if rec.ID == 0 {
				t.Error("record has no ID")
			}
			if rec.PathLength != 4 || rec.SubgoalCount != 3 || rec.WaypointCount != 1 {
				t.Errorf("summary = path %d subgoals %d waypoints %d", rec.PathLength, rec.SubgoalCount, rec.WaypointCount)
			}

			got, err := db.GetMazeByFingerprint("fp-save")
			if err != nil {
				t.Fatalf("GetMazeByFingerprint() failed: %v", err)
			}
			if got.ID != rec.ID || got.PathSeed != 42 {
				t.Errorf("lookup = id %d seed %d, want id %d seed 42", got.ID, got.PathSeed, rec.ID)
			}
			if len(got.Snapshot.Path) != 4 || got.Snapshot.Layout[1] != "*oE" {
				t.Errorf("snapshot did not round-trip: %+v", got.Snapshot)
			}
		})
	}
}

func TestSaveMazeDeduplicates(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			first, _, err := db.SaveMaze(testSnapshot("fp-dup", 1))
			if err != nil {
				t.Fatalf("SaveMaze() failed: %v", err)
			}

			second, created, err := db.SaveMaze(testSnapshot("fp-dup", 1))
			if err != nil {
				t.Fatalf("second SaveMaze() failed: %v", err)
			}
			if created {
				t.Error("duplicate save should not create a record")
			}
			if second.ID != first.ID {
				t.Errorf("duplicate save returned id %d, want %d", second.ID, first.ID)
			}

			if count, _ := db.CountMazes(); count != 1 {
				t.Errorf("CountMazes() = %d, want 1", count)
			}
		})
	}
}

func TestSaveMazeRequiresFingerprint(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if _, _, err := db.SaveMaze(maze.Snapshot{}); err == nil {
		t.Error("expected error for snapshot without fingerprint")
	}
}

func TestListMazes(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 5; i++ {
				if _, _, err := db.SaveMaze(testSnapshot(fmt.Sprintf("fp-list-%d", i), int64(i))); err != nil {
					t.Fatalf("SaveMaze(%d) failed: %v", i, err)
				}
			}

			records, err := db.ListMazes(3)
			if err != nil {
				t.Fatalf("ListMazes() failed: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("ListMazes(3) returned %d records", len(records))
			}
			for i, want := range []int64{5, 4, 3} {
				if records[i].PathSeed != want {
					t.Errorf("record %d path seed = %d, want %d", i, records[i].PathSeed, want)
				}
			}

			all, err := db.ListMazes(0)
			if err != nil {
				t.Fatalf("ListMazes(0) failed: %v", err)
			}
			if len(all) != 5 {
				t.Errorf("ListMazes(0) returned %d records, want 5", len(all))
			}
		})
	}
}

func TestListMazesAfter(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			var ids []int64
			for i := 1; i <= 5; i++ {
				rec, _, err := db.SaveMaze(testSnapshot(fmt.Sprintf("fp-page-%d", i), int64(i)))
				if err != nil {
					t.Fatalf("SaveMaze(%d) failed: %v", i, err)
				}
				ids = append(ids, rec.ID)
			}

			var seen []int64
			var after int64
			for {
				page, err := db.ListMazesAfter(after, 2)
				if err != nil {
					t.Fatalf("ListMazesAfter() failed: %v", err)
				}
				if len(page) == 0 {
					break
				}
				if len(page) > 2 {
					t.Fatalf("page of %d records, want at most 2", len(page))
				}
				for _, r := range page {
					seen = append(seen, r.ID)
				}
				after = page[len(page)-1].ID
			}

			if fmt.Sprint(seen) != fmt.Sprint(ids) {
				t.Errorf("paged ids = %v, want %v", seen, ids)
			}
		})
	}
}

func TestGetMazeNotFound(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := db.GetMaze(987654); !errors.Is(err, ErrMazeNotFound) {
				t.Errorf("GetMaze() error = %v, want ErrMazeNotFound", err)
			}
			if _, err := db.GetMazeByFingerprint("missing"); !errors.Is(err, ErrMazeNotFound) {
				t.Errorf("GetMazeByFingerprint() error = %v, want ErrMazeNotFound", err)
			}
		})
	}
}

func TestDeleteMaze(t *testing.T) {
	for name, db := range testDatabases(t) {
		t.Run(name, func(t *testing.T) {
			rec, _, err := db.SaveMaze(testSnapshot("fp-delete", 3))
			if err != nil {
				t.Fatalf("SaveMaze() failed: %v", err)
			}

			if err := db.DeleteMaze(rec.ID); err != nil {
				t.Fatalf("DeleteMaze() failed: %v", err)
			}
			if err := db.DeleteMaze(rec.ID); !errors.Is(err, ErrMazeNotFound) {
				t.Errorf("second DeleteMaze() error = %v, want ErrMazeNotFound", err)
			}
			if count, _ := db.CountMazes(); count != 0 {
				t.Errorf("CountMazes() = %d, want 0", count)
			}
		})
	}
}
