package sync

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/syftbox-sh/syftbox/internal/aclspec"
	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
	"github.com/syftbox-sh/syftbox/internal/rsync"
	"github.com/syftbox-sh/syftbox/internal/server/httpx"
	"github.com/syftbox-sh/syftbox/internal/server/middlewares"
	"github.com/syftbox-sh/syftbox/internal/server/store"
	"github.com/syftbox-sh/syftbox/internal/transport"
)

func currentUser(ctx *gin.Context) string {
	return ctx.GetString(middlewares.CtxUser)
}

type pathBody struct {
	Path string `json:"path"`
}

// DatasiteStates returns, per datasite, the metadata of every file the
// caller may read (POST /sync/datasite_states).
func (h *Handler) DatasiteStates(ctx *gin.Context) {
	user := currentUser(ctx)

	datasites, err := h.store.ListDatasites(ctx)
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("list datasites: %w", err))
		return
	}

	out := make(map[string][]fsscan.FileMetadata, len(datasites))
	for _, ds := range datasites {
		files, err := h.store.ListMetadata(ctx, ds+"/", 0, 0)
		if err != nil {
			httpx.AbortWithError(ctx, fmt.Errorf("list metadata %s: %w", ds, err))
			return
		}
		var readable []fsscan.FileMetadata
		for _, f := range files {
			if h.canAccess(user, f.Path, aclspec.PermissionRead) {
				readable = append(readable, f)
			}
		}
		if len(readable) > 0 {
			out[ds] = readable
		}
	}

	ctx.JSON(http.StatusOK, out)
}

// DirState returns metadata for every readable file under the dir query
// parameter (POST /sync/dir_state).
func (h *Handler) DirState(ctx *gin.Context) {
	user := currentUser(ctx)
	dir, ok := cleanRelPath(ctx.Query("dir"))
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid dir")
		return
	}

	files, err := h.store.ListMetadata(ctx, dir+"/", 0, 0)
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("list metadata %s: %w", dir, err))
		return
	}

	out := make([]fsscan.FileMetadata, 0, len(files))
	for _, f := range files {
		if h.canAccess(user, f.Path, aclspec.PermissionRead) {
			out = append(out, f)
		}
	}

	ctx.JSON(http.StatusOK, out)
}

// GetMetadata returns the server's metadata for one path (POST
// /sync/get_metadata).
func (h *Handler) GetMetadata(ctx *gin.Context) {
	user := currentUser(ctx)
	var body pathBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}
	path, ok := cleanRelPath(body.Path)
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid path")
		return
	}

	if !h.canAccess(user, path, aclspec.PermissionRead) {
		httpx.AbortWithKind(ctx, apierr.PermissionDenied, "read denied for %s", path)
		return
	}

	meta, err := h.store.GetFileMetadata(ctx, path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.AbortWithKind(ctx, apierr.NotFound, "%s not found", path)
			return
		}
		httpx.AbortWithError(ctx, fmt.Errorf("get metadata %s: %w", path, err))
		return
	}

	ctx.JSON(http.StatusOK, meta)
}

type getDiffRequest struct {
	Path      string `json:"path"`
	Signature string `json:"signature"`
}

// GetDiff computes a binary diff of the server's current content for
// path against the caller's signature (POST /sync/get_diff).
func (h *Handler) GetDiff(ctx *gin.Context) {
	user := currentUser(ctx)
	var body getDiffRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}
	path, ok := cleanRelPath(body.Path)
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid path")
		return
	}

	if !h.canAccess(user, path, aclspec.PermissionRead) {
		httpx.AbortWithKind(ctx, apierr.PermissionDenied, "read denied for %s", path)
		return
	}

	sig, err := rsync.DecodeSignature(body.Signature)
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid signature: %v", err)
		return
	}

	content, err := h.snapshot.Read(path)
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.NotFound, "%s not found", path)
		return
	}

	diff := rsync.ComputeDiff(sig, content)
	meta, err := metadataFromBytes(path, content)
	if err != nil {
		httpx.AbortWithError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, transport.DiffResult{
		Diff:         diff.Encode(),
		ExpectedHash: meta.Hash,
	})
}

type applyDiffRequest struct {
	Path         string `json:"path"`
	Diff         string `json:"diff"`
	ExpectedHash string `json:"expected_hash"`
}

// ApplyDiff applies a client-sent binary diff to the server's current
// content for path, verifies the result's hash, and stages it atomically
// (spec section 4.8: temp file then rename, DB updated only on success).
func (h *Handler) ApplyDiff(ctx *gin.Context) {
	user := currentUser(ctx)
	var body applyDiffRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}
	path, ok := cleanRelPath(body.Path)
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid path")
		return
	}

	writeGate := aclspec.PermissionWrite
	if filepath.Base(path) == aclspec.FileName {
		writeGate = aclspec.PermissionAdmin
	}
	if !h.canAccess(user, path, writeGate) {
		httpx.AbortWithKind(ctx, apierr.PermissionDenied, "write denied for %s", path)
		return
	}

	oldContent, err := h.snapshot.Read(path)
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.NotFound, "%s not found", path)
		return
	}

	diff, err := rsync.DecodeDiff(body.Diff)
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid diff: %v", err)
		return
	}

	newContent, err := rsync.Apply(oldContent, diff)
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "apply diff: %v", err)
		return
	}

	meta, err := metadataFromBytes(path, newContent)
	if err != nil {
		httpx.AbortWithError(ctx, err)
		return
	}
	if meta.Hash != body.ExpectedHash {
		httpx.AbortWithKind(ctx, apierr.HashMismatch, "applied hash %s != expected %s", meta.Hash, body.ExpectedHash)
		return
	}

	tempPath, _, err := h.snapshot.Stage(path, newContent)
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("stage %s: %w", path, err))
		return
	}
	if err := h.store.SaveFileMetadata(ctx, meta); err != nil {
		h.snapshot.Abort(tempPath)
		httpx.AbortWithError(ctx, fmt.Errorf("save metadata %s: %w", path, err))
		return
	}
	if err := h.snapshot.Commit(tempPath, path); err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("commit %s: %w", path, err))
		return
	}

	if writeGate == aclspec.PermissionAdmin {
		// A malformed permission file does not change effective
		// permissions (spec section 4.2): the bytes are already
		// committed, so a parse failure here is only logged, never
		// rolled back or surfaced as a request error.
		if err := h.onPermissionFileChanged(ctx, path, newContent); err != nil {
			slog.Error("reload permission file", "path", path, "error", err)
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"applied_hash": meta.Hash})
}

// Create uploads a brand-new file (POST /sync/create, multipart). Fails
// with AlreadyExists if path is already known.
func (h *Handler) Create(ctx *gin.Context) {
	user := currentUser(ctx)
	path, ok := cleanRelPath(ctx.PostForm("path"))
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid path")
		return
	}

	if !h.canAccess(user, path, aclspec.PermissionCreate) {
		httpx.AbortWithKind(ctx, apierr.PermissionDenied, "create denied for %s", path)
		return
	}

	if h.snapshot.Exists(path) {
		httpx.AbortWithKind(ctx, apierr.AlreadyExists, "%s already exists", path)
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "missing file: %v", err)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("open upload %s: %w", path, err))
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("read upload %s: %w", path, err))
		return
	}

	meta, err := metadataFromBytes(path, content)
	if err != nil {
		httpx.AbortWithError(ctx, err)
		return
	}

	tempPath, _, err := h.snapshot.Stage(path, content)
	if err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("stage %s: %w", path, err))
		return
	}
	if err := h.store.SaveFileMetadata(ctx, meta); err != nil {
		h.snapshot.Abort(tempPath)
		httpx.AbortWithError(ctx, fmt.Errorf("save metadata %s: %w", path, err))
		return
	}
	if err := h.snapshot.Commit(tempPath, path); err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("commit %s: %w", path, err))
		return
	}

	if filepath.Base(path) == aclspec.FileName {
		if err := h.onPermissionFileChanged(ctx, path, content); err != nil {
			slog.Error("reload permission file", "path", path, "error", err)
		}
	}

	ctx.Status(http.StatusCreated)
}

// Delete removes path server-side (POST /sync/delete).
func (h *Handler) Delete(ctx *gin.Context) {
	user := currentUser(ctx)
	var body pathBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}
	path, ok := cleanRelPath(body.Path)
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid path")
		return
	}

	if !h.canAccess(user, path, aclspec.PermissionWrite) {
		httpx.AbortWithKind(ctx, apierr.PermissionDenied, "write denied for %s", path)
		return
	}

	if err := h.snapshot.Delete(path); err != nil {
		httpx.AbortWithError(ctx, fmt.Errorf("delete %s: %w", path, err))
		return
	}
	if err := h.store.DeleteFileMetadata(ctx, path); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			httpx.AbortWithError(ctx, fmt.Errorf("delete metadata %s: %w", path, err))
			return
		}
	}

	if filepath.Base(path) == aclspec.FileName {
		if err := h.onPermissionFileDeleted(ctx, path); err != nil {
			slog.Error("clear permission file rules", "path", path, "error", err)
		}
	}

	ctx.Status(http.StatusOK)
}

// Download streams the raw bytes of path (POST /sync/download).
func (h *Handler) Download(ctx *gin.Context) {
	user := currentUser(ctx)
	var body pathBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}
	path, ok := cleanRelPath(body.Path)
	if !ok {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid path")
		return
	}

	if !h.canAccess(user, path, aclspec.PermissionRead) {
		httpx.AbortWithKind(ctx, apierr.PermissionDenied, "read denied for %s", path)
		return
	}

	content, err := h.snapshot.Read(path)
	if err != nil {
		httpx.AbortWithKind(ctx, apierr.NotFound, "%s not found", path)
		return
	}

	ctx.Data(http.StatusOK, "application/octet-stream", content)
}

type downloadBulkRequest struct {
	Paths []string `json:"paths"`
}

// DownloadBulk bundles several paths' raw bytes into a single
// length-prefixed response body (POST /sync/download_bulk). Paths the
// caller cannot read are silently dropped from the bundle.
func (h *Handler) DownloadBulk(ctx *gin.Context) {
	user := currentUser(ctx)
	var body downloadBulkRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		httpx.AbortWithKind(ctx, apierr.BadRequest, "invalid request body")
		return
	}

	var buf bytes.Buffer
	for _, raw := range body.Paths {
		path, ok := cleanRelPath(raw)
		if !ok || !h.canAccess(user, path, aclspec.PermissionRead) {
			continue
		}
		content, err := h.snapshot.Read(path)
		if err != nil {
			continue
		}
		if err := transport.WriteBundleEntry(&buf, path, content); err != nil {
			httpx.AbortWithError(ctx, fmt.Errorf("bundle %s: %w", path, err))
			return
		}
	}

	ctx.Data(http.StatusOK, "application/octet-stream", buf.Bytes())
}
