// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/session"
)

type fakeUploader struct {
	mu      sync.Mutex
	busy    bool
	fail    error
	// preempt makes the next UploadFile calls fail as if another upload
	// had started after the busy check.
	preempt int
	paths   []string
	drags   int
	leaves  int
}

func (f *fakeUploader) DragEnter() {
	f.mu.Lock()
	f.drags++
	f.mu.Unlock()
}

func (f *fakeUploader) DragLeave() {
	f.mu.Lock()
	f.leaves++
	f.mu.Unlock()
}

func (f *fakeUploader) UploadFile(ctx context.Context, path string) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.preempt > 0 {
		f.preempt--
		return model.Document{}, fmt.Errorf("%w: an upload is already in progress", session.ErrPreconditionViolated)
	}
	if f.fail != nil {
		return model.Document{}, f.fail
	}
	return model.Document{ID: "doc", Filename: filepath.Base(path)}, nil
}

func (f *fakeUploader) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return session.Snapshot{Upload: session.UploadStatus{Phase: session.UploadUploading}}
	}
	return session.Snapshot{}
}

func (f *fakeUploader) Uploaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func newTestWatcher(t *testing.T, up Uploader) (*Watcher, string) {
	t.Helper()
	dir := t.TempDir()
	w, err := New(up, Options{
		Dir:        dir,
		Debounce:   20 * time.Millisecond,
		Extensions: []string{".pdf", ".txt", ".MD"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// =============================================================================
// TESTS
// =============================================================================

func TestNew_RejectsMissingAndFiles(t *testing.T) {
	_, err := New(&fakeUploader{}, Options{Dir: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := writeFile(t, t.TempDir(), "a.txt", "x")
	_, err = New(&fakeUploader{}, Options{Dir: file})
	assert.ErrorIs(t, err, ErrNotDirectory)
}

func TestWatcher_Accepts(t *testing.T) {
	w, _ := newTestWatcher(t, &fakeUploader{})

	tests := []struct {
		path string
		want bool
	}{
		{"/drop/report.pdf", true},
		{"/drop/REPORT.PDF", true},
		{"/drop/notes.md", true},
		{"/drop/image.png", false},
		{"/drop/.hidden.txt", false},
		{"/drop/draft.txt~", false},
		{"/drop/noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, w.accepts(tt.path))
		})
	}
}

func TestWatcher_DrainRespectsDebounce(t *testing.T) {
	up := &fakeUploader{}
	w, dir := newTestWatcher(t, up)
	path := writeFile(t, dir, "a.txt", "hello")

	now := time.Now()
	require.True(t, w.enqueue(path, now))
	assert.Zero(t, w.drain(now.Add(5*time.Millisecond)))
	assert.Equal(t, 1, w.Pending())

	assert.Equal(t, 1, w.drain(now.Add(time.Second)))
	assert.Equal(t, []string{path}, up.Uploaded())
	assert.Zero(t, w.Pending())
	assert.Equal(t, 1, up.drags)
}

func TestWatcher_SkipsUnchangedFile(t *testing.T) {
	up := &fakeUploader{}
	w, dir := newTestWatcher(t, up)
	path := writeFile(t, dir, "a.txt", "hello")

	now := time.Now()
	w.enqueue(path, now)
	require.Equal(t, 1, w.drain(now.Add(time.Second)))

	w.enqueue(path, now)
	assert.Zero(t, w.drain(now.Add(time.Second)))

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	w.enqueue(path, now)
	assert.Equal(t, 1, w.drain(now.Add(time.Second)))
	assert.Len(t, up.Uploaded(), 2)
}

func TestWatcher_KeepsQueueWhileBusy(t *testing.T) {
	up := &fakeUploader{busy: true}
	w, dir := newTestWatcher(t, up)
	a := writeFile(t, dir, "a.txt", "a")
	b := writeFile(t, dir, "b.txt", "b")

	now := time.Now()
	w.enqueue(a, now)
	w.enqueue(b, now)
	assert.Zero(t, w.drain(now.Add(time.Second)))
	assert.Equal(t, 2, w.Pending())

	up.mu.Lock()
	up.busy = false
	up.mu.Unlock()
	assert.Equal(t, 2, w.drain(now.Add(time.Second)))
	assert.Equal(t, []string{a, b}, up.Uploaded())
}

func TestWatcher_RequeuesWhenUploadStartsFirst(t *testing.T) {
	up := &fakeUploader{preempt: 1}
	var results []Result
	dir := t.TempDir()
	w, err := New(up, Options{
		Dir:        dir,
		Debounce:   20 * time.Millisecond,
		Extensions: []string{".txt"},
		OnResult:   func(r Result) { results = append(results, r) },
	})
	require.NoError(t, err)
	defer w.Close()

	path := writeFile(t, dir, "a.txt", "a")
	now := time.Now()
	w.enqueue(path, now)
	assert.Zero(t, w.drain(now.Add(time.Second)))
	assert.Equal(t, 1, w.Pending())
	assert.Empty(t, results)

	assert.Equal(t, 1, w.drain(time.Now().Add(time.Second)))
	assert.Equal(t, []string{path, path}, up.Uploaded())
	assert.Zero(t, w.Pending())
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
}

func TestWatcher_FailedUploadClearsDragHint(t *testing.T) {
	up := &fakeUploader{fail: assert.AnError}
	var results []Result
	dir := t.TempDir()
	w, err := New(up, Options{
		Dir:        dir,
		Extensions: []string{".txt"},
		OnResult:   func(r Result) { results = append(results, r) },
	})
	require.NoError(t, err)
	defer w.Close()

	path := writeFile(t, dir, "a.txt", "a")
	now := time.Now()
	w.enqueue(path, now)
	assert.Zero(t, w.drain(now.Add(time.Second)))

	assert.Equal(t, 1, up.leaves)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, assert.AnError)
	assert.Zero(t, w.Pending())
}

func TestWatcher_ForgetRemovedFile(t *testing.T) {
	up := &fakeUploader{}
	w, dir := newTestWatcher(t, up)
	path := writeFile(t, dir, "a.txt", "a")

	now := time.Now()
	w.enqueue(path, now)
	require.NoError(t, os.Remove(path))
	assert.Zero(t, w.drain(now.Add(time.Second)))
	assert.Empty(t, up.Uploaded())
}

func TestWatcher_EndToEnd(t *testing.T) {
	up := &fakeUploader{}
	w, dir := newTestWatcher(t, up)
	require.NoError(t, w.Watch())

	writeFile(t, dir, "ignored.png", "png")
	path := writeFile(t, dir, "dropped.pdf", "%PDF")

	require.Eventually(t, func() bool {
		return len(up.Uploaded()) == 1
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, up.Uploaded()[0])
}
