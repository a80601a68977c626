package transport

import (
	"bytes"
	"context"
	"fmt"

	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/fsscan"
)

type pathBody struct {
	Path string `json:"path"`
}

// DatasiteStates fetches per-datasite metadata for every datasite visible
// to the caller (POST /sync/datasite_states).
func (c *Client) DatasiteStates(ctx context.Context) (map[string][]fsscan.FileMetadata, error) {
	var out map[string][]fsscan.FileMetadata
	var envelope apierr.Error
	resp, err := c.req(ctx).SetSuccessResult(&out).SetErrorResult(&envelope).Post("/sync/datasite_states")
	if err != nil {
		return nil, fmt.Errorf("datasite_states: %w", err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return out, nil
}

// DirState fetches metadata for every file under dir (POST
// /sync/dir_state?dir=<rel>).
func (c *Client) DirState(ctx context.Context, dir string) ([]fsscan.FileMetadata, error) {
	var out []fsscan.FileMetadata
	var envelope apierr.Error
	resp, err := c.req(ctx).SetQueryParam("dir", dir).SetSuccessResult(&out).SetErrorResult(&envelope).Post("/sync/dir_state")
	if err != nil {
		return nil, fmt.Errorf("dir_state: %w", err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return out, nil
}

// GetMetadata fetches the server's metadata for one path (POST
// /sync/get_metadata).
func (c *Client) GetMetadata(ctx context.Context, path string) (*fsscan.FileMetadata, error) {
	var out fsscan.FileMetadata
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(pathBody{Path: path}).SetSuccessResult(&out).SetErrorResult(&envelope).Post("/sync/get_metadata")
	if err != nil {
		return nil, fmt.Errorf("get_metadata %s: %w", path, err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return &out, nil
}

type getDiffRequest struct {
	Path      string `json:"path"`
	Signature string `json:"signature"`
}

// DiffResult is the server's response to get_diff: the base-85 encoded
// diff and the hash the result must equal once applied.
type DiffResult struct {
	Diff         string `json:"diff"`
	ExpectedHash string `json:"expected_hash"`
}

// GetDiff requests a binary diff of the server's content for path against
// signature (POST /sync/get_diff).
func (c *Client) GetDiff(ctx context.Context, path, signature string) (*DiffResult, error) {
	var out DiffResult
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(getDiffRequest{Path: path, Signature: signature}).
		SetSuccessResult(&out).SetErrorResult(&envelope).Post("/sync/get_diff")
	if err != nil {
		return nil, fmt.Errorf("get_diff %s: %w", path, err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return &out, nil
}

type applyDiffRequest struct {
	Path         string `json:"path"`
	Diff         string `json:"diff"`
	ExpectedHash string `json:"expected_hash"`
}

type applyDiffResponse struct {
	AppliedHash string `json:"applied_hash"`
}

// ApplyDiff pushes a binary diff to be applied server-side (POST
// /sync/apply_diff). Returns apierr.HashMismatch if the server rejects the
// result hash.
func (c *Client) ApplyDiff(ctx context.Context, path, diff, expectedHash string) (string, error) {
	var out applyDiffResponse
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(applyDiffRequest{Path: path, Diff: diff, ExpectedHash: expectedHash}).
		SetSuccessResult(&out).SetErrorResult(&envelope).Post("/sync/apply_diff")
	if err != nil {
		return "", fmt.Errorf("apply_diff %s: %w", path, err)
	}
	if resp.IsErrorState() {
		return "", asError(resp, &envelope)
	}
	return out.AppliedHash, nil
}

// Create uploads the whole file at path as a multipart body (POST
// /sync/create). Returns apierr.AlreadyExists if the path already exists
// server-side.
func (c *Client) Create(ctx context.Context, path string, content []byte) error {
	var envelope apierr.Error
	resp, err := c.req(ctx).
		SetFileBytes("file", path, content).
		SetFormData(map[string]string{"path": path}).
		SetErrorResult(&envelope).
		Post("/sync/create")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if resp.IsErrorState() {
		return asError(resp, &envelope)
	}
	return nil
}

// Delete removes path server-side (POST /sync/delete).
func (c *Client) Delete(ctx context.Context, path string) error {
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(pathBody{Path: path}).SetErrorResult(&envelope).Post("/sync/delete")
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if resp.IsErrorState() {
		return asError(resp, &envelope)
	}
	return nil
}

// Download fetches the raw bytes of path (POST /sync/download).
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(pathBody{Path: path}).SetErrorResult(&envelope).Post("/sync/download")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return resp.Bytes(), nil
}

type downloadBulkRequest struct {
	Paths []string `json:"paths"`
}

// DownloadBulk fetches several paths' raw bytes in a single request (POST
// /sync/download_bulk). The bundle is a simple length-prefixed
// concatenation, not a real zip archive, matching the "zip-like bundle"
// language of spec section 6.
func (c *Client) DownloadBulk(ctx context.Context, paths []string) (map[string][]byte, error) {
	var envelope apierr.Error
	resp, err := c.req(ctx).SetBody(downloadBulkRequest{Paths: paths}).SetErrorResult(&envelope).Post("/sync/download_bulk")
	if err != nil {
		return nil, fmt.Errorf("download_bulk: %w", err)
	}
	if resp.IsErrorState() {
		return nil, asError(resp, &envelope)
	}
	return decodeBundle(resp.Bytes())
}

// decodeBundle reads the length-prefixed bundle format WriteBundleEntry
// writes: repeated (path-len uint32, path, content-len uint64, content).
func decodeBundle(raw []byte) (map[string][]byte, error) {
	out := map[string][]byte{}
	buf := bytes.NewReader(raw)
	for buf.Len() > 0 {
		path, content, err := readBundleEntry(buf)
		if err != nil {
			return nil, fmt.Errorf("decode bulk bundle: %w", err)
		}
		out[path] = content
	}
	return out, nil
}
