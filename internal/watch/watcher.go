// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/scylladb/go-set/strset"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/session"
)

// drainInterval is how often ready entries are checked.
const drainInterval = 100 * time.Millisecond

// ErrNotDirectory is returned when the watched path is not a directory.
var ErrNotDirectory = errors.New("watch path is not a directory")

// =============================================================================
// UPLOADER INTERFACE
// =============================================================================

// Uploader receives upload intents. *session.Controller implements it.
type Uploader interface {
	DragEnter()
	DragLeave()
	UploadFile(ctx context.Context, path string) (model.Document, error)
	Snapshot() session.Snapshot
}

// Result reports one upload attempt made by the watcher.
type Result struct {
	Path     string
	Document model.Document
	Err      error
}

// Options configures a Watcher.
type Options struct {
	// Dir is the drop folder.
	Dir string

	// Debounce is how long a file must stay unchanged before upload (default: 500ms).
	Debounce time.Duration

	// Extensions lists the accepted file extensions, with the leading dot.
	Extensions []string

	// OnResult is called after every upload attempt. Optional.
	OnResult func(Result)

	// Logger receives structured logs (default: no-op).
	Logger *zap.Logger
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher turns files dropped into a directory into upload intents.
type Watcher struct {
	up       Uploader
	watcher  *fsnotify.Watcher
	dir      string
	debounce time.Duration
	exts     *strset.Set
	onResult func(Result)
	logger   *zap.Logger

	mu       sync.Mutex
	pending  map[string]time.Time // path -> last change
	uploaded *strset.Set          // path@modtime

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for opts.Dir. Call Watch to start it.
func New(up Uploader, opts Options) (*Watcher, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, opts.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	exts := strset.New()
	for _, ext := range opts.Extensions {
		exts.Add(strings.ToLower(ext))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		up:       up,
		watcher:  fsw,
		dir:      opts.Dir,
		debounce: opts.Debounce,
		exts:     exts,
		onResult: opts.OnResult,
		logger:   logger,
		pending:  make(map[string]time.Time),
		uploaded: strset.New(),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching the directory.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()

	w.logger.Info("watching drop folder",
		zap.String("dir", w.dir),
		zap.Strings("extensions", w.exts.List()),
		zap.Duration("debounce", w.debounce))
	return nil
}

// Close stops watching and waits for an in-progress upload to return.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Pending returns the number of queued files.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// processEvents moves filesystem events into the pending map.
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("watch event loop panicked", zap.Any("panic", r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.enqueue(event.Name, time.Now())
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.forget(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// enqueue records a change to path if its extension is accepted.
func (w *Watcher) enqueue(path string, at time.Time) bool {
	if !w.accepts(path) {
		return false
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
	return true
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return w.exts.Has(strings.ToLower(filepath.Ext(path)))
}

// processPending drains ready entries on a ticker.
func (w *Watcher) processPending() {
	defer w.wg.Done()
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case now := <-ticker.C:
			w.drain(now)
		}
	}
}

// drain uploads every entry that has been quiet for the debounce period, in
// path order. While the uploader is busy entries stay queued.
func (w *Watcher) drain(now time.Time) int {
	w.mu.Lock()
	var ready []string
	for path, changed := range w.pending {
		if now.Sub(changed) >= w.debounce {
			ready = append(ready, path)
		}
	}
	w.mu.Unlock()
	sort.Strings(ready)

	uploaded := 0
	for _, path := range ready {
		if w.ctx.Err() != nil {
			return uploaded
		}
		if w.up.Snapshot().Upload.Phase == session.UploadUploading {
			w.logger.Debug("upload in flight, keeping queue", zap.Int("queued", w.Pending()))
			return uploaded
		}
		if w.upload(path) {
			uploaded++
		}
	}
	return uploaded
}

// upload sends one file unless this exact version was sent before. A file
// that lost the race against another upload goes back on the queue.
func (w *Watcher) upload(path string) bool {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	key := path + "@" + strconv.FormatInt(info.ModTime().UnixNano(), 10)
	if w.uploaded.Has(key) {
		w.logger.Debug("skipping unchanged file", zap.String("path", path))
		return false
	}

	w.up.DragEnter()
	doc, err := w.up.UploadFile(w.ctx, path)
	if errors.Is(err, session.ErrPreconditionViolated) {
		w.mu.Lock()
		if _, ok := w.pending[path]; !ok {
			w.pending[path] = time.Now().Add(-w.debounce)
		}
		w.mu.Unlock()
		w.logger.Debug("uploader busy, requeued", zap.String("path", path))
		return false
	}
	if err != nil {
		w.up.DragLeave()
		w.logger.Warn("drop folder upload failed", zap.String("path", path), zap.Error(err))
	} else {
		w.uploaded.Add(key)
		w.logger.Info("drop folder upload complete",
			zap.String("path", path),
			zap.String("document", doc.ID))
	}

	if w.onResult != nil {
		w.onResult(Result{Path: path, Document: doc, Err: err})
	}
	return err == nil
}
