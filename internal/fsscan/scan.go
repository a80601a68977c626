// Package fsscan walks a datasites tree, applies the workspace ignore
// rules, and produces per-file metadata: relative path, content hash,
// rsync-style signature, size, and modification time. Spec section 4.3.
package fsscan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/syftbox-sh/syftbox/internal/rsync"
)

// FileMetadata is the derived per-file record spec section 3 defines. It
// doubles as the wire shape exchanged with the server (spec section 6).
type FileMetadata struct {
	Path         string    `json:"path"`
	Hash         string    `json:"hash"`
	Signature    string    `json:"signature"`
	FileSize     int64     `json:"file_size"`
	LastModified time.Time `json:"last_modified"`
}

// IgnoreFunc reports whether relPath should be skipped by the scan.
type IgnoreFunc func(relPath string, isDir bool) bool

// Progress is invoked after each file is processed, letting a caller
// surface scan progress or cancel early via ctx.
type Progress func(scanned int, path string)

// Result is the outcome of one scan pass. Errors holds per-file failures
// that did not abort the walk (spec: "the change computer tolerates the
// scanner returning partial results").
type Result struct {
	Files  []FileMetadata
	Errors map[string]error
}

// Scan walks root (the datasites tree, or a single datasite subtree),
// skipping entries ignore reports true for, and returns metadata for
// every remaining regular file.
func Scan(ctx context.Context, root string, ignore IgnoreFunc, progress Progress) (*Result, error) {
	res := &Result{Errors: make(map[string]error)}
	scanned := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			rel, _ := filepath.Rel(root, path)
			res.Errors[rel] = err
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ignore != nil && ignore(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		meta, err := hashFile(path, rel)
		if err != nil {
			slog.Warn("scan: failed to hash file", "path", rel, "error", err)
			res.Errors[rel] = err
			return nil
		}

		res.Files = append(res.Files, *meta)
		scanned++
		if progress != nil {
			progress(scanned, rel)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan %s: %w", root, err)
	}
	return res, nil
}

func hashFile(absPath, relPath string) (*FileMetadata, error) {
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hasher := sha256.New()
	sigSrc, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer sigSrc.Close()

	if _, err := io.Copy(hasher, f); err != nil {
		return nil, err
	}

	sig, err := rsync.ComputeSignature(sigSrc)
	if err != nil {
		return nil, err
	}

	return &FileMetadata{
		Path:         relPath,
		Hash:         hex.EncodeToString(hasher.Sum(nil)),
		Signature:    sig.Encode(),
		FileSize:     info.Size(),
		LastModified: info.ModTime().UTC(),
	}, nil
}
