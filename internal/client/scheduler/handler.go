package scheduler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/syftbox-sh/syftbox/internal/apierr"
	"github.com/syftbox-sh/syftbox/internal/rsync"
	"github.com/syftbox-sh/syftbox/internal/synccompute"
	"github.com/syftbox-sh/syftbox/internal/utils"
)

// handle is the syncqueue.Handler: it executes one computed change
// against the transport and local disk (spec section 4.5).
func (s *Scheduler) handle(ctx context.Context, item synccompute.FileChangeInfo) error {
	switch item.Kind {
	case synccompute.ChangePush, synccompute.ChangeConflictPush:
		return s.push(ctx, item.Path)
	case synccompute.ChangePull, synccompute.ChangeConflictPull:
		return s.pull(ctx, item.Path)
	case synccompute.ChangeDeleteLocal:
		return s.deleteLocal(item.Path)
	case synccompute.ChangeDeleteRemote:
		return s.deleteRemote(ctx, item.Path)
	default:
		return nil
	}
}

// push uploads the local copy of path to the server: a whole-file create
// if the server has no copy yet, otherwise a binary diff against the
// server's signature (spec section 4.5, item 2).
func (s *Scheduler) push(ctx context.Context, path string) error {
	content, err := s.readLocal(path)
	if err != nil {
		return fmt.Errorf("read local %s: %w", path, err)
	}

	meta, err := s.client.GetMetadata(ctx, path)
	if apiErr, ok := apierr.As(err); ok && apiErr.ErrorKind == apierr.NotFound {
		if createErr := s.client.Create(ctx, path, content); createErr != nil {
			if createIsAlreadyExists(createErr) {
				// Lost the race with another writer; fall through to a
				// diff-based push against whatever now exists remotely.
				return s.pushDiff(ctx, path, content)
			}
			return createErr
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("get_metadata %s: %w", path, err)
	}

	return s.pushDiffAgainst(ctx, path, content, meta.Signature)
}

func (s *Scheduler) pushDiff(ctx context.Context, path string, content []byte) error {
	meta, err := s.client.GetMetadata(ctx, path)
	if err != nil {
		return fmt.Errorf("get_metadata %s: %w", path, err)
	}
	return s.pushDiffAgainst(ctx, path, content, meta.Signature)
}

func (s *Scheduler) pushDiffAgainst(ctx context.Context, path string, content []byte, remoteSigEncoded string) error {
	remoteSig, err := rsync.DecodeSignature(remoteSigEncoded)
	if err != nil {
		return fmt.Errorf("decode remote signature for %s: %w", path, err)
	}

	diff := rsync.ComputeDiff(remoteSig, content)
	hash := hashHex(content)

	_, err = s.client.ApplyDiff(ctx, path, diff.Encode(), hash)
	if err == nil {
		return nil
	}

	apiErr, ok := apierr.As(err)
	if !ok || apiErr.ErrorKind != apierr.HashMismatch {
		return err
	}

	// Server's block table didn't reconstruct our content, most likely
	// because it changed again since get_metadata. Retry once with a
	// diff that carries the whole file as literal data (spec section 7).
	full := rsync.ComputeDiff(&rsync.Signature{}, content)
	_, err = s.client.ApplyDiff(ctx, path, full.Encode(), hash)
	return err
}

// pull fetches the server's copy of path: a binary diff against the
// local signature, applied locally, falling back to a whole-file
// download if the result doesn't match the server's claimed hash (spec
// section 4.5, item 3, and section 7).
func (s *Scheduler) pull(ctx context.Context, path string) error {
	local, err := s.readLocal(path)
	if err != nil {
		return fmt.Errorf("read local %s: %w", path, err)
	}

	localSig, err := rsync.ComputeSignature(bytes.NewReader(local))
	if err != nil {
		return fmt.Errorf("compute local signature for %s: %w", path, err)
	}

	diffResult, err := s.client.GetDiff(ctx, path, localSig.Encode())
	if apiErr, ok := apierr.As(err); ok && apiErr.ErrorKind == apierr.NotFound {
		// Deleted remotely between the list and the fetch.
		return s.deleteLocal(path)
	}
	if err != nil {
		return fmt.Errorf("get_diff %s: %w", path, err)
	}

	diff, err := rsync.DecodeDiff(diffResult.Diff)
	if err != nil {
		return fmt.Errorf("decode diff for %s: %w", path, err)
	}

	newContent, err := rsync.Apply(local, diff)
	if err == nil && hashHex(newContent) == diffResult.ExpectedHash {
		return s.writeLocal(path, newContent)
	}

	// Either Apply failed (stale local signature) or the result didn't
	// match: fall back to a whole-file download.
	full, dlErr := s.client.Download(ctx, path)
	if dlErr != nil {
		return fmt.Errorf("fallback download %s: %w", path, dlErr)
	}
	return s.writeLocal(path, full)
}

func (s *Scheduler) deleteLocal(path string) error {
	abs, err := s.ws.Resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete local %s: %w", path, err)
	}
	return nil
}

func (s *Scheduler) deleteRemote(ctx context.Context, path string) error {
	return s.client.Delete(ctx, path)
}

func (s *Scheduler) readLocal(path string) ([]byte, error) {
	abs, err := s.ws.Resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		return []byte{}, nil
	}
	return content, err
}

func (s *Scheduler) writeLocal(path string, content []byte) error {
	abs, err := s.ws.Resolve(path)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(abs, content, 0o644)
}

func hashHex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func createIsAlreadyExists(err error) bool {
	apiErr, ok := apierr.As(err)
	return ok && apiErr.ErrorKind == apierr.AlreadyExists
}
