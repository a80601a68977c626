package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/syftbox-sh/syftbox/internal/fsscan"
)

// ErrNotFound is returned when an operation expects exactly one affected
// row and finds zero.
var ErrNotFound = errors.New("file metadata not found")

type fileMetadataRow struct {
	Path         string    `db:"path"`
	Hash         string    `db:"hash"`
	Signature    string    `db:"signature"`
	FileSize     int64     `db:"file_size"`
	LastModified time.Time `db:"last_modified"`
}

func toMetadata(r fileMetadataRow) fsscan.FileMetadata {
	return fsscan.FileMetadata{
		Path:         r.Path,
		Hash:         r.Hash,
		Signature:    r.Signature,
		FileSize:     r.FileSize,
		LastModified: r.LastModified,
	}
}

// SaveFileMetadata upserts a row by path.
func (s *Store) SaveFileMetadata(ctx context.Context, m fsscan.FileMetadata) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO file_metadata (path, hash, signature, file_size, last_modified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			signature = excluded.signature,
			file_size = excluded.file_size,
			last_modified = excluded.last_modified
	`, m.Path, m.Hash, m.Signature, m.FileSize, m.LastModified)
	if err != nil {
		return fmt.Errorf("save file metadata %s: %w", m.Path, err)
	}
	return nil
}

// DeleteFileMetadata removes the row for path. Requires exactly one row
// affected, per spec section 4.7.
func (s *Store) DeleteFileMetadata(ctx context.Context, path string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM file_metadata WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("delete file metadata %s: %w", path, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete file metadata %s: %w", path, err)
	}
	if n != 1 {
		return fmt.Errorf("delete file metadata %s: %w", path, ErrNotFound)
	}
	return nil
}

// GetFileMetadata fetches the row for path.
func (s *Store) GetFileMetadata(ctx context.Context, path string) (*fsscan.FileMetadata, error) {
	var row fileMetadataRow
	err := s.db.GetContext(ctx, &row, `SELECT path, hash, signature, file_size, last_modified FROM file_metadata WHERE path = ?`, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get file metadata %s: %w", path, err)
	}
	m := toMetadata(row)
	return &m, nil
}

// ListMetadata returns every row whose path has the given prefix,
// ordered by path for stable pagination.
func (s *Store) ListMetadata(ctx context.Context, prefix string, limit, offset int) ([]fsscan.FileMetadata, error) {
	var rows []fileMetadataRow
	query := `SELECT path, hash, signature, file_size, last_modified FROM file_metadata WHERE path LIKE ? ORDER BY path`
	args := []any{prefix + "%"}
	if limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list metadata prefix %s: %w", prefix, err)
	}
	out := make([]fsscan.FileMetadata, len(rows))
	for i, r := range rows {
		out[i] = toMetadata(r)
	}
	return out, nil
}

// ListDatasites returns the distinct first path segment across every
// known file, i.e. the set of known datasites.
func (s *Store) ListDatasites(ctx context.Context) ([]string, error) {
	var all []string
	if err := s.db.SelectContext(ctx, &all, `SELECT path FROM file_metadata`); err != nil {
		return nil, fmt.Errorf("list datasites: %w", err)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, p := range all {
		owner := firstSegment(p)
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		out = append(out, owner)
	}
	return out, nil
}

func firstSegment(path string) string {
	for i, c := range path {
		if c == '/' {
			return path[:i]
		}
	}
	return path
}

// MoveWithTransaction moves the on-disk file at fromAbs to toAbs and
// updates its metadata row to the new path and content, inside one DB
// transaction. If the rename fails the transaction is rolled back before
// anything touches disk; if the DB commit fails after the rename, the
// rename is reversed so disk and DB never observe different paths for
// the same logical file (spec section 4.7's "leaves the file in place
// and restores" requirement).
func (s *Store) MoveWithTransaction(ctx context.Context, fromAbs, toAbs string, meta fsscan.FileMetadata) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("move %s -> %s: begin: %w", fromAbs, toAbs, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM file_metadata WHERE path = ?`, meta.Path); err != nil {
		tx.Rollback()
		return fmt.Errorf("move %s -> %s: delete old row: %w", fromAbs, toAbs, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO file_metadata (path, hash, signature, file_size, last_modified)
		VALUES (?, ?, ?, ?, ?)
	`, meta.Path, meta.Hash, meta.Signature, meta.FileSize, meta.LastModified); err != nil {
		tx.Rollback()
		return fmt.Errorf("move %s -> %s: insert new row: %w", fromAbs, toAbs, err)
	}

	if err := os.Rename(fromAbs, toAbs); err != nil {
		tx.Rollback()
		return fmt.Errorf("move %s -> %s: rename: %w", fromAbs, toAbs, err)
	}

	if err := tx.Commit(); err != nil {
		if rerr := os.Rename(toAbs, fromAbs); rerr != nil {
			return fmt.Errorf("move %s -> %s: commit failed (%v) and rollback rename failed: %w", fromAbs, toAbs, err, rerr)
		}
		return fmt.Errorf("move %s -> %s: commit: %w", fromAbs, toAbs, err)
	}

	return nil
}
