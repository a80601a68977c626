// Package scheduler drives the client's sync loop (spec section 4.9): a
// ticking pass over every visible datasite that lists remote state,
// scans local state, computes the change list, and feeds it to the sync
// queue, plus a filesystem watcher that triggers a targeted rescan when
// local files change between ticks.
package scheduler

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/syftbox-sh/syftbox/internal/fsscan"
	"github.com/syftbox-sh/syftbox/internal/synccompute"
	"github.com/syftbox-sh/syftbox/internal/syncqueue"
	"github.com/syftbox-sh/syftbox/internal/transport"
	"github.com/syftbox-sh/syftbox/internal/workspace"
)

// DefaultInterval is the base tick period; each tick is jittered to
// between 0.5x and 1.5x this value so many clients polling the same
// server don't beat in lockstep.
const DefaultInterval = time.Second

// watchDebounce coalesces bursts of filesystem events (e.g. an editor's
// save-as-temp-then-rename) into a single rescan.
const watchDebounce = 300 * time.Millisecond

// Scheduler owns the tick loop, the filesystem watcher, and the queue
// consumer that turns computed changes into transport calls.
type Scheduler struct {
	ws       *workspace.Workspace
	client   *transport.Client
	ignore   *fsscan.Ignore
	consumer *syncqueue.Consumer
	interval time.Duration

	watcher  *fsnotify.Watcher
	rescanCh chan struct{}
}

// New builds a Scheduler for ws, talking to client, syncing every
// interval (DefaultInterval if zero).
func New(ws *workspace.Workspace, client *transport.Client, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ignore, err := fsscan.LoadIgnore(ws.Root)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create filesystem watcher: %w", err)
	}

	s := &Scheduler{
		ws:       ws,
		client:   client,
		ignore:   ignore,
		interval: interval,
		watcher:  watcher,
		rescanCh: make(chan struct{}, 1),
	}
	s.consumer = syncqueue.New(s.handle)
	return s, nil
}

// Len reports how many change intents are still queued.
func (s *Scheduler) Len() int {
	return s.consumer.Len()
}

// Start runs the tick loop, the filesystem watcher, and the queue
// consumer until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.watchTree(s.ws.DatasitesDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.ws.DatasitesDir, err)
	}

	// Run one pass synchronously before starting the loops, so the first
	// pass's changes are already queued when the consumer begins draining.
	if err := s.runPass(ctx); err != nil {
		slog.Error("initial sync pass", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.consumer.Run(gctx) })
	g.Go(func() error { return s.tickLoop(gctx) })
	g.Go(func() error { return s.watchLoop(gctx) })
	return g.Wait()
}

// Stop releases the filesystem watcher.
func (s *Scheduler) Stop() {
	_ = s.watcher.Close()
}

func (s *Scheduler) tickLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.jitteredInterval()):
		}
		if err := s.runPass(ctx); err != nil {
			slog.Error("sync pass", "error", err)
		}
	}
}

func (s *Scheduler) jitteredInterval() time.Duration {
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(s.interval) * factor)
}

// runPass lists every visible datasite's remote state, scans the
// matching local subtree, computes the change list per datasite, and
// enqueues everything but no-ops.
func (s *Scheduler) runPass(ctx context.Context) error {
	remoteByDatasite, err := s.client.DatasiteStates(ctx)
	if err != nil {
		return fmt.Errorf("list datasite states: %w", err)
	}

	localScan, err := fsscan.Scan(ctx, s.ws.DatasitesDir, s.ignore.AsFunc(), nil)
	if err != nil {
		return fmt.Errorf("scan workspace: %w", err)
	}
	localByDatasite := groupByDatasite(localScan.Files)

	datasites := make(map[string]struct{}, len(remoteByDatasite)+len(localByDatasite))
	for name := range remoteByDatasite {
		datasites[name] = struct{}{}
	}
	for name := range localByDatasite {
		datasites[name] = struct{}{}
	}

	total := 0
	var totalBytes int64
	for name := range datasites {
		changes := synccompute.Compute(s.ws.Owner, localByDatasite[name], remoteByDatasite[name])
		changes = dropNoops(changes)
		if len(changes) == 0 {
			continue
		}
		s.consumer.Enqueue(changes)
		total += len(changes)
		for _, c := range changes {
			totalBytes += c.Size
		}
	}

	if total > 0 {
		slog.Info("sync pass queued changes", "items", total, "size", humanize.Bytes(uint64(totalBytes)))
	}
	return nil
}

func dropNoops(changes []synccompute.FileChangeInfo) []synccompute.FileChangeInfo {
	out := changes[:0]
	for _, c := range changes {
		if c.Kind != synccompute.ChangeNoop {
			out = append(out, c)
		}
	}
	return out
}

func groupByDatasite(files []fsscan.FileMetadata) map[string][]fsscan.FileMetadata {
	out := make(map[string][]fsscan.FileMetadata)
	for _, f := range files {
		owner := workspace.Owner(f.Path)
		out[owner] = append(out[owner], f)
	}
	return out
}

// watchTree adds root and every directory beneath it to the watcher.
// fsnotify only watches the directories it is explicitly told about, so
// new subdirectories are added as they're observed being created.
func (s *Scheduler) watchTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.ws.DatasitesDir, path)
		if relErr == nil && rel != "." && s.ignore.Match(filepath.ToSlash(rel), true) {
			return fs.SkipDir
		}
		if err := s.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Scheduler) watchLoop(ctx context.Context) error {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-s.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.watchTree(event.Name); err != nil {
						slog.Warn("watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			if debounce == nil {
				debounce = time.AfterFunc(watchDebounce, func() {
					select {
					case s.rescanCh <- struct{}{}:
					default:
					}
				})
			} else {
				debounce.Reset(watchDebounce)
			}

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("filesystem watcher error", "error", err)

		case <-s.rescanCh:
			if err := s.runPass(ctx); err != nil {
				slog.Error("watch-triggered sync pass", "error", err)
			}
		}
	}
}

