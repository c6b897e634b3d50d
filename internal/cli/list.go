package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox-sweep/internal/model"
	"github.com/nhle/inbox-sweep/internal/session"
	"github.com/nhle/inbox-sweep/internal/sync"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	ShowMessages bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List unread conversations in priority order",
		Long: `List every conversation with unread messages, ordered by priority,
oldest unread message, and unread count.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.ShowMessages, "messages", "m", false, "show recent messages per conversation")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	db, agg, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sess := session.New()
	refresher := sync.New(db, agg, sess, nil)
	if _, err := refresher.Refresh(cmd.Context()); err != nil {
		return err
	}

	entries := sess.Snapshot()
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No unread conversations.")
		return nil
	}

	out := cmd.OutOrStdout()
	for _, entry := range entries {
		conv := entry.Conversation
		fmt.Fprintf(out, "[%d] %s  (%d unread, oldest %s)\n",
			conv.Priority, conv.Name(), conv.UnreadCount,
			conv.OldestUnread.Local().Format("Jan 2 15:04"))
		if opts.ShowMessages {
			printMessages(out, conv)
		}
	}

	stats := sess.Stats()
	fmt.Fprintf(out, "\n%d conversations, %d unread messages total\n",
		stats.Total, totalUnread(entries))
	return nil
}

func printMessages(out io.Writer, conv model.Conversation) {
	for _, m := range conv.Messages {
		sender := "me"
		if !m.FromMe {
			sender = m.SenderName
			if sender == "" {
				sender = m.Sender
			}
		}
		text := m.DisplayText()
		if text == "" && len(m.Attachments) > 0 {
			text = "[attachment]"
		}
		if summary := m.ReactionSummary(); summary != "" {
			text = text + "  " + summary
		}
		fmt.Fprintf(out, "    %s %s: %s\n",
			m.Date.Local().Format(time.Kitchen), sender, strings.TrimSpace(text))
	}
}

func totalUnread(entries []session.Entry) int {
	n := 0
	for _, e := range entries {
		n += e.Conversation.UnreadCount
	}
	return n
}
