package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox-sweep/internal/chatdb"
	"github.com/nhle/inbox-sweep/internal/contacts"
	"github.com/nhle/inbox-sweep/internal/model"
	"github.com/nhle/inbox-sweep/internal/triage"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the inboxsweep CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "inboxsweep",
		Short: "Batch-reply to unread Messages conversations",
		Long: `inboxsweep reads the macOS Messages database, surfaces every
conversation with unread messages in priority order, and sends drafted
replies in one batch through Messages.app.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSendCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// loadConfig resolves the configuration for a command invocation.
func loadConfig(opts *RootOptions) (*model.AppConfig, error) {
	path := opts.ConfigPath
	if path == "" {
		path = model.DefaultConfigPath()
	}
	return model.LoadConfig(path)
}

// openEngine opens the message store and builds the aggregator from
// the resolved configuration.
func openEngine(cfg *model.AppConfig) (*chatdb.DB, *triage.Aggregator, error) {
	db, err := chatdb.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("opening message store: %w", err)
	}

	var resolver contacts.Resolver
	table, err := contacts.LoadAddressBook(contacts.DefaultAddressBookDir())
	if err != nil {
		slog.Warn("contact resolution unavailable", "error", err)
		resolver = contacts.NopResolver{}
	} else {
		resolver = table
	}

	agg := triage.New(cfg.Store.ContextWindow, cfg.Overrides(), resolver)
	return db, agg, nil
}
