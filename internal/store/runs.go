package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/tableseg/internal/geom"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored segmentation call.
type Run struct {
	RunID          string          `json:"run_id"`
	CreatedAtNs    int64           `json:"created_at_ns"`
	Source         string          `json:"source,omitempty"` // file or request that produced the frame
	Status         string          `json:"status"`           // segment.ResultKind name
	Height         int             `json:"height"`
	Width          int             `json:"width"`
	PlaneCount     int             `json:"plane_count"`
	ObjectCount    int             `json:"object_count"`
	LabelledPixels int             `json:"labelled_pixels"`
	DurationNs     *int64          `json:"duration_ns,omitempty"`
	ParamsJSON     json.RawMessage `json:"params,omitempty"`
	Objects        []ObjectRow     `json:"objects,omitempty"`
}

// ObjectRow is one accepted object of a run.
type ObjectRow struct {
	RunID      string           `json:"run_id"`
	ObjectID   int              `json:"object_id"`
	PlaneIndex int              `json:"plane_index"`
	PointCount int              `json:"point_count"`
	Volume     float64          `json:"volume"`
	Box        geom.OrientedBox `json:"box"`
}

// RunStore provides persistence for segmentation runs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun stores run and its objects in one transaction.
// If run.RunID is empty, a new UUID is generated.
func (s *RunStore) InsertRun(run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = time.Now().UnixNano()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin insert run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO segment_runs (
			run_id, created_at_ns, source, status, height, width,
			plane_count, object_count, labelled_pixels, duration_ns, params_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.RunID,
		run.CreatedAtNs,
		nullString(run.Source),
		run.Status,
		run.Height,
		run.Width,
		run.PlaneCount,
		run.ObjectCount,
		run.LabelledPixels,
		nullInt64(run.DurationNs),
		nullString(string(run.ParamsJSON)),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i := range run.Objects {
		o := &run.Objects[i]
		o.RunID = run.RunID
		boxJSON, err := json.Marshal(o.Box)
		if err != nil {
			return fmt.Errorf("encode box of object %d: %w", o.ObjectID, err)
		}
		_, err = tx.Exec(`
			INSERT INTO segment_objects (
				run_id, object_id, plane_index, point_count, volume,
				center_x, center_y, center_z, box_json
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			o.RunID, o.ObjectID, o.PlaneIndex, o.PointCount, o.Volume,
			o.Box.Center.X, o.Box.Center.Y, o.Box.Center.Z, string(boxJSON),
		)
		if err != nil {
			return fmt.Errorf("insert object %d: %w", o.ObjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

const runColumns = `run_id, created_at_ns, source, status, height, width,
	plane_count, object_count, labelled_pixels, duration_ns, params_json`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var source, paramsJSON sql.NullString
	var durationNs sql.NullInt64

	err := row.Scan(
		&run.RunID,
		&run.CreatedAtNs,
		&source,
		&run.Status,
		&run.Height,
		&run.Width,
		&run.PlaneCount,
		&run.ObjectCount,
		&run.LabelledPixels,
		&durationNs,
		&paramsJSON,
	)
	if err != nil {
		return nil, err
	}

	// Map nullable fields
	if source.Valid {
		run.Source = source.String
	}
	if durationNs.Valid {
		v := durationNs.Int64
		run.DurationNs = &v
	}
	if paramsJSON.Valid && paramsJSON.String != "" {
		run.ParamsJSON = json.RawMessage(paramsJSON.String)
	}
	return &run, nil
}

// GetRun retrieves a run and its objects by ID.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM segment_runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	run.Objects, err = s.ListObjects(runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. Objects are not loaded.
// A limit <= 0 returns every run.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM segment_runs ORDER BY created_at_ns DESC, run_id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListObjects returns the objects of a run ordered by object id.
func (s *RunStore) ListObjects(runID string) ([]ObjectRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, object_id, plane_index, point_count, volume, box_json
		FROM segment_objects
		WHERE run_id = ?
		ORDER BY object_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []ObjectRow
	for rows.Next() {
		var o ObjectRow
		var boxJSON string
		if err := rows.Scan(&o.RunID, &o.ObjectID, &o.PlaneIndex, &o.PointCount, &o.Volume, &boxJSON); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if err := json.Unmarshal([]byte(boxJSON), &o.Box); err != nil {
			return nil, fmt.Errorf("decode box of object %d: %w", o.ObjectID, err)
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return objects, nil
}

// DeleteRun removes a run and its objects.
func (s *RunStore) DeleteRun(runID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin delete run: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM segment_objects WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("delete objects: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM segment_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return tx.Commit()
}

// Helper functions for nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
