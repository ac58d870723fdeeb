// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeranaias/cognilib/internal/config"
	"github.com/jeranaias/cognilib/internal/model"
	"github.com/jeranaias/cognilib/internal/session"
	"github.com/jeranaias/cognilib/internal/ui/components"
	"github.com/jeranaias/cognilib/internal/util"
)

// maxSourceExcerpt bounds the excerpt printed under a reply.
const maxSourceExcerpt = 240

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(a *app) *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions in a line-based REPL",
		Long: `Start an interactive question and answer session.

Without --conversation a new conversation is created. Type /help for the
REPL commands; Ctrl+D or /quit leaves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), cmd.OutOrStdout(), conversationID)
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue an existing conversation")
	return cmd
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	cli := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history to file with 0600 permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

const chatHelp = `Commands:
  /new      start a new conversation
  /list     list conversations
  /use ID   switch to a conversation
  /help     show this help
  /quit     leave (Ctrl+D works too)`

func (a *app) runChat(ctx context.Context, out io.Writer, conversationID string) error {
	ctrl := a.controller(a.client(), true)
	defer ctrl.Close()
	if err := ctrl.Start(ctx); err != nil {
		return errors.Wrap(err, "load lists")
	}

	if conversationID != "" {
		if err := ctrl.SelectConversation(ctx, conversationID); err != nil {
			return errors.Wrapf(err, "open conversation %s", conversationID)
		}
	} else if _, err := ctrl.NewConversation(ctx); err != nil {
		return errors.Wrap(err, "create conversation")
	}

	r := newReplyPrinter(a.cfg.UI)
	for _, m := range ctrl.Snapshot().Messages {
		r.print(out, m)
	}
	fmt.Fprintln(out, "Type a question, or /help.")

	input := NewChatCLI()
	defer input.Close()

	prompt := promptColor.Sprint("cognilib> ")
	for {
		line, err := input.ReadInput(prompt)
		if err != nil {
			// Ctrl+C, Ctrl+D and closed input all end the session.
			fmt.Fprintln(out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.chatCommand(ctx, out, ctrl, line); quit {
				return nil
			}
			continue
		}

		if err := ctrl.SendMessage(ctx, line); err != nil {
			printError(out, err)
			continue
		}
		msgs := ctrl.Snapshot().Messages
		if n := len(msgs); n > 0 && msgs[n-1].Role == model.RoleAssistant {
			r.print(out, msgs[n-1])
		}
	}
}

// chatCommand runs one slash command and reports whether to quit.
func (a *app) chatCommand(ctx context.Context, out io.Writer, ctrl *session.Controller, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit", "/q":
		return true
	case "/help":
		fmt.Fprintln(out, chatHelp)
	case "/new":
		conv, err := ctrl.NewConversation(ctx)
		if err != nil {
			printError(out, err)
			break
		}
		printSuccess(out, "Started conversation %s", conv.ID)
	case "/list":
		snap := ctrl.Snapshot()
		for _, c := range snap.Conversations {
			marker := " "
			if c.ID == snap.ActiveID {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s  %s\n", marker, c.ID, util.SingleLine(c.GetTitle()))
		}
	case "/use":
		if len(fields) != 2 {
			printWarning(out, "usage: /use ID")
			break
		}
		if err := ctrl.SelectConversation(ctx, fields[1]); err != nil {
			printError(out, err)
			break
		}
		r := newReplyPrinter(a.cfg.UI)
		for _, m := range ctrl.Snapshot().Messages {
			r.print(out, m)
		}
	default:
		printWarning(out, "unknown command %s, try /help", fields[0])
	}
	return false
}

// =============================================================================
// REPLY PRINTING
// =============================================================================

// replyPrinter writes messages for a line-based terminal.
type replyPrinter struct {
	markdown    *components.MarkdownRenderer
	hideSources bool
	highlight   bool
}

func newReplyPrinter(ui config.UIConfig) *replyPrinter {
	styled := IsStdoutTTY() && ColorsEnabled()
	width := GetTerminalWidth()
	if ui.WordWrap > 0 && ui.WordWrap < width {
		width = ui.WordWrap
	}
	return &replyPrinter{
		markdown:    components.NewMarkdownRenderer(width, ui.PlainText || !styled),
		hideSources: ui.HideSources,
		highlight:   styled,
	}
}

func (r *replyPrinter) print(w io.Writer, m model.Message) {
	roleColor.Fprintf(w, "%s:\n", m.Role.DisplayName())
	if m.Role == model.RoleAssistant {
		fmt.Fprintln(w, r.markdown.Render(m.Content))
	} else {
		fmt.Fprintln(w, m.Content)
	}
	if r.hideSources || len(m.Sources) == 0 {
		fmt.Fprintln(w)
		return
	}

	labelColor.Fprintln(w, "Sources:")
	for i, src := range m.Sources {
		fmt.Fprintf(w, "  [%d] %s #%d\n", i+1, src.Filename, src.ChunkIndex)
		excerpt := util.TruncateRunes(util.SingleLine(src.Content), maxSourceExcerpt)
		if r.highlight {
			excerpt = components.HighlightExcerpt(excerpt, src.Filename)
		}
		fmt.Fprintf(w, "      %s\n", excerpt)
	}
	fmt.Fprintln(w)
}
