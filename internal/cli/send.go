package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nhle/inbox-sweep/internal/send"
	"github.com/nhle/inbox-sweep/internal/session"
	"github.com/nhle/inbox-sweep/internal/sync"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	*RootOptions
	BatchPath string
	DryRun    bool
}

// batchItem is one drafted reply in a batch file.
type batchItem struct {
	// Conversation is the stable conversation identifier, as printed
	// by the list command.
	Conversation string `yaml:"conversation"`

	// Text is the reply to send.
	Text string `yaml:"text"`
}

// NewSendCommand creates the send command.
func NewSendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a batch of drafted replies",
		Long: `Send drafted replies from a YAML batch file through Messages.app.

Each batch entry names a conversation identifier and the reply text.
Conversations that no longer have unread messages are rejected, and a
failed send never stops the rest of the batch.

Example batch file:
  - conversation: "+15551234567"
    text: "On my way!"
  - conversation: chat831154925162391840
    text: "Sounds good, see you all there."`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.BatchPath, "batch", "", "path to YAML batch file (required)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "stage drafts without sending")
	_ = cmd.MarkFlagRequired("batch")

	return cmd
}

func runSend(cmd *cobra.Command, opts *SendOptions) error {
	items, err := loadBatch(opts.BatchPath)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("batch file %s contains no entries", opts.BatchPath)
	}

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

	out := cmd.OutOrStdout()
	staged := 0
	for _, item := range items {
		if _, err := sess.Commit(item.Conversation, item.Text); err != nil {
			fmt.Fprintf(out, "SKIP  %s: %v\n", item.Conversation, err)
			continue
		}
		staged++
	}
	if staged == 0 {
		return fmt.Errorf("no batch entries matched an unread conversation")
	}

	if opts.DryRun {
		fmt.Fprintf(out, "%d replies staged (dry run, nothing sent)\n", staged)
		return nil
	}

	orch := send.NewOrchestrator(send.AppleScript{}, cfg.Send)
	report, sendErr := orch.SendAll(cmd.Context(), sess)

	for _, res := range report.Results {
		if res.Err != nil {
			fmt.Fprintf(out, "FAIL  %s: %v\n", res.Name, res.Err)
			continue
		}
		fmt.Fprintf(out, "SENT  %s\n", res.Name)
	}
	fmt.Fprintf(out, "\nbatch %s: %d sent, %d failed\n",
		report.BatchID, report.Succeeded(), report.Failed())

	if sendErr != nil {
		return fmt.Errorf("batch interrupted: %w", sendErr)
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%d sends failed", report.Failed())
	}
	return nil
}

func loadBatch(path string) ([]batchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}

	var items []batchItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing batch file %s: %w", path, err)
	}
	return items, nil
}
