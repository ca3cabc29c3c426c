package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// SQLiteStore implements VectorStore backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
	// dims is the width of the live vec0 table; want is what Reset rebuilds it with.
	dims int
	want int
}

var _ VectorStore = (*SQLiteStore)(nil)

// OpenSQLite creates or opens a database at dbPath. A database built with
// a different dimension keeps its table until Reset.
func OpenSQLite(ctx context.Context, dbPath string, dims int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &SQLiteStore{db: db, dims: dims, want: dims}

	recorded, err := s.recordedDims(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if recorded > 0 {
		s.dims = recorded
	}
	if err := initSchema(ctx, db, s.dims); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	if recorded == 0 {
		if err := s.SetMeta(ctx, MetaDimensions, strconv.Itoa(s.dims)); err != nil {
			db.Close()
			return nil, fmt.Errorf("record dimensions: %w", err)
		}
	}
	return s, nil
}

// recordedDims reads the dimension from an existing database, or 0.
func (s *SQLiteStore) recordedDims(ctx context.Context) (int, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", MetaDimensions).Scan(&value)
	if err != nil {
		// Fresh database: the meta table does not exist yet.
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s meta %q: %w", MetaDimensions, value, err)
	}
	return n, nil
}

// Dimensions reports the width of stored vectors.
func (s *SQLiteStore) Dimensions() int { return s.dims }

func (s *SQLiteStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	for _, e := range entries {
		if len(e.Vector) != s.dims {
			return ErrDimensionMismatch{Expected: s.dims, Got: len(e.Vector)}
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		var rowID int64
		err := tx.QueryRowContext(ctx, "SELECT id FROM entries WHERE key = ?", e.ID).Scan(&rowID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				"INSERT INTO entries (key, source, seq, content) VALUES (?, ?, ?, ?)",
				e.ID, e.Source, e.Seq, e.Text,
			)
			if err != nil {
				return fmt.Errorf("insert entry %s: %w", e.ID, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			// Last write wins: replace text and vector in place.
			if _, err := tx.ExecContext(ctx,
				"UPDATE entries SET source = ?, seq = ?, content = ?, indexed_at = CURRENT_TIMESTAMP WHERE id = ?",
				e.Source, e.Seq, e.Text, rowID,
			); err != nil {
				return fmt.Errorf("update entry %s: %w", e.ID, err)
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM vec_entries WHERE entry_id = ?", rowID); err != nil {
				return err
			}
		}

		blob, err := sqlite_vec.SerializeFloat32(e.Vector)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vec_entries (entry_id, embedding) VALUES (?, ?)", rowID, blob,
		); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	if len(vector) != s.dims {
		return nil, ErrDimensionMismatch{Expected: s.dims, Got: len(vector)}
	}
	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.key, e.source, e.content, knn.distance
		FROM (
			SELECT entry_id, distance
			FROM vec_entries
			WHERE embedding MATCH ? AND k = ?
		) AS knn
		JOIN entries e ON e.id = knn.entry_id
		ORDER BY knn.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Source, &h.Text, &h.Distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries").Scan(&n)
	return n, err
}

func (s *SQLiteStore) Sources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT source, COUNT(*) FROM entries GROUP BY source ORDER BY source",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceInfo
	for rows.Next() {
		var si SourceInfo
		if err := rows.Scan(&si.Source, &si.Chunks); err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// Reset drops every entry and rebuilds the vector table at the configured
// dimension.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS vec_entries"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM meta WHERE key = ?", MetaEmbeddingModel); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(vecDDL, s.want)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		MetaDimensions, strconv.Itoa(s.want),
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.dims = s.want
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
