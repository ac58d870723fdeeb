// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/devgateway"
)

// =============================================================================
// HARNESS
// =============================================================================

type testEnv struct {
	t       *testing.T
	home    string
	cfgPath string
	url     string
}

// newTestEnv serves a fresh devgateway and isolates the config directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv, err := devgateway.New(config.Default().DevGateway, nil)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Shutdown() })

	httpSrv := httptest.NewServer(adaptor.FiberApp(srv.App()))
	t.Cleanup(httpSrv.Close)

	home := t.TempDir()
	t.Setenv("COGNILIB_HOME", home)
	return &testEnv{
		t:       t,
		home:    home,
		cfgPath: filepath.Join(home, "config.toml"),
		url:     httpSrv.URL,
	}
}

// run executes one command line and returns stdout, stderr and the error.
func (e *testEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	a := &app{}
	root := newRootCommand(a)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", e.cfgPath, "--gateway", e.url}, args...))
	err := root.ExecuteContext(context.Background())
	a.cleanup()
	return out.String(), errOut.String(), err
}

func (e *testEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.t.TempDir(), name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// firstID returns the first table cell that looks like a uuid.
func firstID(t *testing.T, table string) string {
	t.Helper()
	for _, f := range strings.Fields(table) {
		if len(f) == 36 && strings.Count(f, "-") == 4 {
			return f
		}
	}
	t.Fatalf("no id in output:\n%s", table)
	return ""
}

// =============================================================================
// COMMAND TESTS
// =============================================================================

func TestVersion_SkipsSetup(t *testing.T) {
	e := newTestEnv(t)
	// An invalid config would fail setup.
	require.NoError(t, os.WriteFile(e.cfgPath, []byte("version = \n"), 0600))

	out, _, err := e.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "cognilib "+Version)
}

func TestConfig_InitShowPath(t *testing.T) {
	e := newTestEnv(t)

	out, _, err := e.run("config", "path")
	require.NoError(t, err)
	assert.Equal(t, e.cfgPath+"\n", out)

	out, _, err = e.run("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+e.cfgPath)
	assert.FileExists(t, e.cfgPath)

	_, _, err = e.run("config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, _, err = e.run("config", "init", "--force")
	require.NoError(t, err)

	out, _, err = e.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[gateway]")
	// --gateway overrides the file.
	assert.Contains(t, out, e.url)
}

func TestConversations_Lifecycle(t *testing.T) {
	e := newTestEnv(t)

	out, _, err := e.run("conversations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No conversations yet")

	out, _, err = e.run("conversations", "new")
	require.NoError(t, err)
	assert.Contains(t, out, "Created conversation")

	out, _, err = e.run("conversations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "New Conversation")
	id := firstID(t, out)

	out, _, err = e.run("conversations", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "No messages yet.")

	if !IsTTY() {
		// Deleting without a terminal needs --yes.
		_, _, err = e.run("conversations", "rm", id)
		assert.ErrorIs(t, err, ErrConfirmationRequired)
	}

	out, _, err = e.run("conversations", "rm", "--yes", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted conversation "+id)

	_, _, err = e.run("conversations", "show", id)
	assert.Error(t, err)
}

func TestDocs_UploadListRemove(t *testing.T) {
	e := newTestEnv(t)
	good := e.writeFile("policy.md", "# Policy\n\nRefunds are issued within 30 days.\n")
	bad := e.writeFile("tool.exe", "MZ")

	out, errOut, err := e.run("docs", "upload", good, bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 uploads failed: tool.exe")
	assert.Contains(t, out, "Uploaded policy.md")
	assert.Contains(t, errOut, "File type .exe not supported")

	out, _, err = e.run("docs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "policy.md")
	assert.Contains(t, out, "ready")
	id := firstID(t, out)

	out, _, err = e.run("docs", "rm", "-y", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted document "+id)

	out, _, err = e.run("docs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No documents yet")
}

func TestStatus_ReportsCountsAndActivity(t *testing.T) {
	e := newTestEnv(t)
	doc := e.writeFile("notes.txt", "Shipping takes five business days.")
	_, _, err := e.run("docs", "upload", doc)
	require.NoError(t, err)

	out, _, err := e.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "Documents:")
	assert.Contains(t, out, e.url)

	// The upload run was recorded and is shown as the previous run.
	assert.Contains(t, out, "Previous run")
	assert.Contains(t, out, "upload")
}

func TestStatus_UnreachableGateway(t *testing.T) {
	e := newTestEnv(t)
	e.url = "http://127.0.0.1:1"

	out, _, err := e.run("status")
	require.Error(t, err)
	assert.Contains(t, out, "Gateway unreachable")
}

func TestConfirm(t *testing.T) {
	ok, err := confirm("delete?", true)
	require.NoError(t, err)
	assert.True(t, ok)

	if !IsTTY() {
		_, err = confirm("delete?", false)
		assert.ErrorIs(t, err, ErrConfirmationRequired)
	}
}

func TestReplyPrinter_PlainOutput(t *testing.T) {
	r := newReplyPrinter(config.UIConfig{PlainText: true})
	var buf bytes.Buffer
	r.print(&buf, sampleReply())

	out := buf.String()
	assert.Contains(t, out, "Assistant:")
	assert.Contains(t, out, "Refunds take **30 days**.")
	assert.Contains(t, out, "[1] policy.md #0")
	assert.Contains(t, out, "Refunds are issued within 30 days.")

	hidden := newReplyPrinter(config.UIConfig{PlainText: true, HideSources: true})
	buf.Reset()
	hidden.print(&buf, sampleReply())
	assert.NotContains(t, buf.String(), "Sources:")
}
