package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sysclean-bot/classifier"
	"sysclean-bot/config"
	"sysclean-bot/message"
	"sysclean-bot/moderation"
	"sysclean-bot/storage"
)

type classifyOptions struct {
	text    string
	profile string
	media   bool
	flags   []string
}

func newClassifyCommand(configPath *string) *cobra.Command {
	var opts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a message offline and print the analysis",
		Args:  cobra.NoArgs,
		Example: `  sysclean classify --text "Иван добавил(а) Петра"
  sysclean classify --profile safe --flag new_chat_members
  sysclean classify --profile strict --media --text "закрепил(а) сообщение"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables := classifier.DefaultTables()
			profile := opts.profile

			// keyword tables come from the config when it is usable
			if cfg, err := config.Load(*configPath); err == nil {
				tables = cfg.Tables()
				if profile == "" {
					profile = cfg.Profile
				}
			} else {
				printErr(cmd, "using built-in tables: %v", err)
			}

			p, err := classifier.ParseProfile(profile)
			if err != nil {
				return err
			}

			s, err := opts.snapshot()
			if err != nil {
				return err
			}

			r := classifier.New(tables).Classify(s, p)
			fmt.Fprintln(cmd.OutOrStdout(), moderation.AnalysisText(s, r))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "message text")
	cmd.Flags().StringVar(&opts.profile, "profile", "",
		"classification profile: permissive, safe, strict, debug (default from config)")
	cmd.Flags().BoolVar(&opts.media, "media", false, "message carries media")
	cmd.Flags().StringSliceVar(&opts.flags, "flag", nil,
		"system event attribute present on the message, e.g. new_chat_members (repeatable)")

	return cmd
}

func (o classifyOptions) snapshot() (message.Snapshot, error) {
	s := message.Snapshot{
		ChatType:   message.ChatSupergroup,
		ChatTitle:  "cli",
		SenderName: "cli",
		HasMedia:   o.media,
		Flags:      make(map[message.EventType]bool, len(o.flags)),
	}
	if o.text != "" {
		s.Text = message.StringPtr(o.text)
	}
	for _, name := range o.flags {
		t := message.EventType(name)
		if !message.IsKnown(t) {
			return message.Snapshot{}, fmt.Errorf("unknown event type %q", name)
		}
		s.Flags[t] = true
	}
	return s, nil
}

func newJournalCommand(configPath *string) *cobra.Command {
	var (
		dbPath string
		chatID int64
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Print recent moderation journal entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return fmt.Errorf("load config (or pass --db): %w", err)
				}
				dbPath = cfg.DBPath
			}

			db, err := storage.NewDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.RecentEntries(context.Background(), chatID, limit)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "journal is empty")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tCHAT\tMESSAGE\tEVENT\tREASON\tACTION\tNOTIFIED\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%d/%d\t%s\n",
					humanize.Time(e.CreatedAt),
					e.ChatID,
					e.MessageID,
					e.EventType,
					e.MatchReason,
					e.Action,
					e.NotifiedOK,
					e.NotifiedOK+e.NotifiedFailed,
					e.Error,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default from config)")
	cmd.Flags().Int64Var(&chatID, "chat", 0, "only show entries for this chat")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries")

	return cmd
}
