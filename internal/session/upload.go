// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/util"
)

// =============================================================================
// UPLOAD SLOT
// =============================================================================

// uploadTask is the single upload slot. attempt increases with every upload
// so late ticks and timers from an earlier attempt are ignored.
type uploadTask struct {
	phase    UploadPhase
	progress int
	filename string
	attempt  uint64
	stop     func()
	settle   *time.Timer
}

// stopEstimator signals the estimator goroutine to exit. It never waits, so
// it is safe to call with the controller lock held.
func (u *uploadTask) stopEstimator() {
	if u.stop != nil {
		u.stop()
		u.stop = nil
	}
}

// stopSettle cancels a pending return to idle.
func (u *uploadTask) stopSettle() {
	if u.settle != nil {
		u.settle.Stop()
		u.settle = nil
	}
}

func (u *uploadTask) reset() {
	u.phase = UploadIdle
	u.progress = 0
	u.filename = ""
}

// =============================================================================
// DRAG HINTS
// =============================================================================

// DragEnter marks a file hovering over the drop target. Ignored unless idle.
func (c *Controller) DragEnter() {
	c.setDrag(UploadIdle, UploadDragging)
}

// DragLeave clears the hover hint.
func (c *Controller) DragLeave() {
	c.setDrag(UploadDragging, UploadIdle)
}

func (c *Controller) setDrag(from, to UploadPhase) {
	c.mu.Lock()
	if c.closed || c.upload.phase != from {
		c.mu.Unlock()
		return
	}
	c.upload.phase = to
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// =============================================================================
// UPLOAD
// =============================================================================

// UploadFile opens path and uploads it under its base name.
func (c *Controller) UploadFile(ctx context.Context, path string) (model.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		err = fmt.Errorf("open %s: %w", path, err)
		c.notify(failureNotice("upload", err, "Could not read "+filepath.Base(path)))
		return model.Document{}, err
	}
	defer f.Close()
	return c.Upload(ctx, filepath.Base(path), f)
}

// Upload sends one document to the gateway.
//
// Only one upload runs at a time; a second call while one is outstanding fails
// with ErrPreconditionViolated. While the request is outstanding, progress is
// an estimate advanced by a timer and never exceeds the configured ceiling. It
// reaches 100 only after the gateway confirms the upload. On failure progress
// returns to 0, the document list is unchanged and one notice is raised.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader) (model.Document, error) {
	if err := c.checkOpen("upload"); err != nil {
		return model.Document{}, err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.notify(failureNotice("upload", ErrClosed, "Session is closed"))
		return model.Document{}, ErrClosed
	}
	if c.upload.phase == UploadUploading {
		busy := c.upload.filename
		c.mu.Unlock()
		err := preconditionf("upload of %q already in progress", busy)
		c.notify(failureNotice("upload", err, "An upload is already in progress"))
		return model.Document{}, err
	}
	c.upload.stopSettle()
	c.upload.attempt++
	attempt := c.upload.attempt
	c.upload.phase = UploadUploading
	c.upload.progress = 0
	c.upload.filename = filename
	c.startEstimatorLocked(attempt)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	c.logger.Info("upload started", zap.String("filename", filename))

	ctx, span := c.tracer.Start(ctx, "session.upload")
	span.SetAttributes(attribute.String("document.filename", filename))
	defer span.End()

	start := time.Now()
	doc, err := c.gw.UploadDocument(ctx, filename, r)
	c.record("upload", err, start)
	if err != nil {
		span.RecordError(err)
		c.failUpload(attempt, filename, err)
		return model.Document{}, err
	}
	c.completeUpload(attempt, doc)
	return doc, nil
}

// completeUpload shows the success state, prepends the document and schedules
// the return to idle.
func (c *Controller) completeUpload(attempt uint64, doc model.Document) {
	c.mu.Lock()
	c.upload.stopEstimator()
	c.upload.phase = UploadSucceeded
	c.upload.progress = 100
	c.docs = dedupeDocuments(append([]model.Document{doc}, c.docs...))
	snaps := []Snapshot{c.snapshotLocked()}

	if c.cfg.SettleDelay <= 0 || c.closed {
		c.upload.reset()
		snaps = append(snaps, c.snapshotLocked())
	} else {
		c.upload.settle = time.AfterFunc(c.cfg.SettleDelay, func() {
			c.settle(attempt)
		})
	}
	c.mu.Unlock()

	c.logger.Info("upload complete",
		zap.String("document", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("chunks", doc.ChunkCount))

	notice := infoNotice("upload", fmt.Sprintf("Uploaded %s (%s chunks)",
		doc.Filename, util.FormatCount(doc.ChunkCount)))
	for i, s := range snaps {
		if i == len(snaps)-1 {
			c.publish(s, notice)
			continue
		}
		c.publish(s)
	}
}

// failUpload shows the failed state, then returns the slot to idle with one
// notice carrying the gateway's reason.
func (c *Controller) failUpload(attempt uint64, filename string, err error) {
	notice := failureNotice("upload", err, "Failed to upload document")

	c.mu.Lock()
	if c.upload.attempt != attempt {
		c.mu.Unlock()
		c.publish(Snapshot{}, notice)
		return
	}
	c.upload.stopEstimator()
	c.upload.phase = UploadFailed
	c.upload.progress = 0
	failed := c.snapshotLocked()
	c.upload.reset()
	idle := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Warn("upload failed", zap.String("filename", filename), zap.Error(err))
	c.publish(failed)
	c.publish(idle, notice)
}

// settle returns a succeeded slot to idle once the delay elapsed.
func (c *Controller) settle(attempt uint64) {
	c.mu.Lock()
	if c.upload.attempt != attempt || c.upload.phase != UploadSucceeded {
		c.mu.Unlock()
		return
	}
	c.upload.settle = nil
	c.upload.reset()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
}

// =============================================================================
// PROGRESS ESTIMATOR
// =============================================================================

// startEstimatorLocked starts the ticker for attempt. Caller holds c.mu.
func (c *Controller) startEstimatorLocked(attempt uint64) {
	done := make(chan struct{})
	var once sync.Once
	c.upload.stop = func() { once.Do(func() { close(done) }) }

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !c.tick(attempt) {
					return
				}
			}
		}
	}()
}

// tick advances the estimate by one step. It reports false once the attempt
// is over or the ceiling is reached.
func (c *Controller) tick(attempt uint64) bool {
	c.mu.Lock()
	if c.upload.attempt != attempt || c.upload.phase != UploadUploading {
		c.mu.Unlock()
		return false
	}
	if c.upload.progress >= c.cfg.Ceiling {
		c.mu.Unlock()
		return false
	}
	c.upload.progress = min(c.upload.progress+c.cfg.Step, c.cfg.Ceiling)
	more := c.upload.progress < c.cfg.Ceiling
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(snap)
	return more
}

// =============================================================================
// DOCUMENT INTENTS
// =============================================================================

// DeleteDocument deletes id on the gateway, then locally. On failure the
// document list is untouched.
func (c *Controller) DeleteDocument(ctx context.Context, id string) error {
	start := time.Now()
	if err := c.checkOpen("delete_document"); err != nil {
		return err
	}

	err := c.gw.DeleteDocument(ctx, id)
	c.record("delete_document", err, start)
	if err != nil {
		c.logger.Warn("delete document failed", zap.String("document", id), zap.Error(err))
		c.notify(failureNotice("delete_document", err, "Failed to delete document"))
		return err
	}

	c.mu.Lock()
	out := c.docs[:0:0]
	for _, d := range c.docs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	c.docs = out
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("document deleted", zap.String("document", id))
	c.publish(snap, infoNotice("delete_document", "Document deleted"))
	return nil
}
