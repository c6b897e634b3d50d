package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox-sweep/internal/session"
	"github.com/nhle/inbox-sweep/internal/sync"
)

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for unread conversations until interrupted",
		Long: `Poll the message store on the configured interval and print the
unread summary whenever it changes. Stops on Ctrl-C.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, rootOpts)
		},
	}
	return cmd
}

func runWatch(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	db, agg, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New()
	refresher := sync.New(db, agg, sess, nil)

	out := cmd.OutOrStdout()
	var last session.Stats

	done := make(chan struct{})
	go func() {
		defer close(done)
		refresher.Run(ctx, time.Duration(cfg.PollIntervalSec)*time.Second)
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Fprintln(out, "Watching for unread conversations. Press Ctrl-C to stop.")
	for {
		select {
		case <-ctx.Done():
			<-done
			fmt.Fprintln(out, "\nStopped.")
			return nil
		case <-ticker.C:
			stats := sess.Stats()
			if stats == last {
				continue
			}
			last = stats
			fmt.Fprintf(out, "%s  %d unread conversations (%d deferred)\n",
				time.Now().Format(time.Kitchen), stats.Remaining, stats.Later)
		}
	}
}
