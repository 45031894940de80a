package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lawnchairsociety/towermaze/internal/maze"
)

// ErrMazeNotFound is returned when a maze lookup fails.
var ErrMazeNotFound = errors.New("maze not found")

// MazeRecord is a stored maze. Summary columns are denormalised from the
// snapshot so listings don't have to decode it.
type MazeRecord struct {
	ID            int64
	Fingerprint   string
	Width         int
	Length        int
	PathSeed      int64
	MaterialSeed  int64
	GapsRemoved   int
	PathLength    int
	SubgoalCount  int
	WaypointCount int
	Snapshot      maze.Snapshot
	CreatedAt     time.Time
}

const mazeColumns = `id, fingerprint, width, length, path_seed, material_seed,
	gaps_removed, path_length, subgoal_count, waypoint_count, snapshot, created_at`

// SaveMaze stores a snapshot. Mazes are deduplicated by fingerprint: saving a
// maze that is already stored returns the existing record and created=false.
func (d *Database) SaveMaze(s maze.Snapshot) (record *MazeRecord, created bool, err error) {
	if s.Fingerprint == "" {
		return nil, false, errors.New("snapshot has no fingerprint")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, false, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := d.qb.BuildWithReturning(
		`INSERT INTO mazes (fingerprint, width, length, path_seed, material_seed,
			gaps_removed, path_length, subgoal_count, waypoint_count, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, "id")
	args := []any{
		s.Fingerprint, s.Width, s.Length, s.PathSeed, s.MaterialSeed,
		s.GapsRemoved, len(s.Path), len(s.Subgoals), len(s.Waypoints), string(data),
	}

	var id int64
	if d.dialect.SupportsLastInsertID() {
		var result sql.Result
		result, err = d.db.Exec(query, args...)
		if err == nil {
			id, err = result.LastInsertId()
		}
	} else {
		err = d.db.QueryRow(query, args...).Scan(&id)
	}
	if err != nil {
		if d.dialect.IsDuplicateKeyError(err) {
			existing, lookupErr := d.GetMazeByFingerprint(s.Fingerprint)
			if lookupErr != nil {
				return nil, false, lookupErr
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("failed to save maze: %w", err)
	}

	record, err = d.GetMaze(id)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// GetMaze retrieves a maze by ID.
func (d *Database) GetMaze(id int64) (*MazeRecord, error) {
	row := d.db.QueryRow(d.qb.Build("SELECT "+mazeColumns+" FROM mazes WHERE id = ?"), id)
	return scanMaze(row)
}

// GetMazeByFingerprint retrieves a maze by its fingerprint.
func (d *Database) GetMazeByFingerprint(fingerprint string) (*MazeRecord, error) {
	row := d.db.QueryRow(d.qb.Build("SELECT "+mazeColumns+" FROM mazes WHERE fingerprint = ?"), fingerprint)
	return scanMaze(row)
}

// ListMazes returns up to limit mazes, most recent first.
func (d *Database) ListMazes(limit int) ([]*MazeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.Query(d.qb.Build("SELECT "+mazeColumns+" FROM mazes ORDER BY id DESC LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mazes: %w", err)
	}
	defer rows.Close()

	var records []*MazeRecord
	for rows.Next() {
		r, err := scanMaze(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ListMazesAfter returns up to limit mazes with IDs greater than afterID in
// ascending ID order, for paging through the whole store.
func (d *Database) ListMazesAfter(afterID int64, limit int) ([]*MazeRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := d.db.Query(d.qb.Build("SELECT "+mazeColumns+" FROM mazes WHERE id > ? ORDER BY id ASC LIMIT ?"), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mazes: %w", err)
	}
	defer rows.Close()

	var records []*MazeRecord
	for rows.Next() {
		r, err := scanMaze(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountMazes returns the number of stored mazes.
func (d *Database) CountMazes() (int, error) {
	var count int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM mazes").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mazes: %w", err)
	}
	return count, nil
}

// DeleteMaze removes a maze by ID.
func (d *Database) DeleteMaze(id int64) error {
	result, err := d.db.Exec(d.qb.Build("DELETE FROM mazes WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete maze: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete maze: %w", err)
	}
	if n == 0 {
		return ErrMazeNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaze(row rowScanner) (*MazeRecord, error) {
	var r MazeRecord
	var snapshot string
	var createdAt sql.NullTime

	err := row.Scan(&r.ID, &r.Fingerprint, &r.Width, &r.Length, &r.PathSeed, &r.MaterialSeed,
		&r.GapsRemoved, &r.PathLength, &r.SubgoalCount, &r.WaypointCount, &snapshot, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMazeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load maze: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &r.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for maze %d: %w", r.ID, err)
	}
	if createdAt.Valid {
		r.CreatedAt = createdAt.Time
	}
	return &r, nil
}
