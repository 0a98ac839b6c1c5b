// cmd/tools/assistant-cli/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"community-assistant/internal/assistant/pipeline"
	"community-assistant/internal/common/cache"
	"community-assistant/internal/common/clock"
	"community-assistant/internal/common/config"
	"community-assistant/internal/common/logger"
	"community-assistant/internal/common/observability"
	"community-assistant/internal/recordstore"
	"community-assistant/pkg/registry"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the persistent flags shared by every command.
type app struct {
	configPath string
	stateDir   string
	userID     string
	logLevel   string
	asJSON     bool
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "assistant-cli",
		Short:         "Ask the community assistant from the terminal",
		Long:          "Runs the chat pipeline against the seeded in-memory records. Clarification sessions are kept in a local Badger store so a dialog can be answered by a later invocation.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file (defaults are used when empty)")
	flags.StringVar(&a.stateDir, "state-dir", defaultStateDir(), "directory for session state; empty keeps state in memory")
	flags.StringVar(&a.userID, "user", "cli", "user id for conversation context")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.asJSON, "json", false, "print raw JSON responses")

	root.AddCommand(
		a.askCmd(),
		a.clarifyCmd(),
		a.faqsCmd(),
		a.capabilitiesCmd(),
		a.validateCatalogCmd(),
	)
	return root
}

func defaultStateDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "community-assistant")
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.configPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(a.configPath)
}

// open assembles a pipeline on memory records and the Badger session store.
// The returned func releases the store.
func (a *app) open() (*pipeline.Pipeline, func(), error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewStructured(a.logLevel, "console")

	reg, err := registry.Default()
	if err != nil {
		return nil, nil, err
	}
	records, err := recordstore.NewMemoryStore(reg)
	if err != nil {
		return nil, nil, fmt.Errorf("seed records: %w", err)
	}

	if a.stateDir != "" {
		if err := os.MkdirAll(a.stateDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	store, err := cache.OpenBadger(a.stateDir)
	if err != nil {
		return nil, nil, err
	}

	p, err := pipeline.Assemble(reg, pipeline.Adapters{
		Records:   records,
		Directory: recordstore.NewMemoryDirectory(records),
		Cache:     store,
		QueryLog:  recordstore.NewMemoryQueryLog(),
	}, cfg.Assistant, clock.System(), observability.Nop(), log)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return p, func() { store.Close() }, nil
}

func (a *app) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ask <message>",
		Short:   "Answer one chat message",
		Example: `  assistant-cli ask "how many communities in Region IX"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer closeFn()

			resp, err := p.Chat(cmd.Context(), a.userID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printResponse(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func (a *app) clarifyCmd() *cobra.Command {
	var sessionID, choice, original string
	cmd := &cobra.Command{
		Use:     "clarify",
		Short:   "Answer a clarification question",
		Example: "  assistant-cli clarify --session <id> --choice region_ix",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer closeFn()

			outcome, err := p.ApplyClarification(cmd.Context(), clarificationRequest(a.userID, sessionID, choice, original))
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), outcome)
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id from the clarification question")
	cmd.Flags().StringVar(&choice, "choice", "", "option key to apply")
	cmd.Flags().StringVar(&original, "query", "", "original question, re-asked when the session has expired")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("choice")
	return cmd
}

func (a *app) faqsCmd() *cobra.Command {
	var limit int
	var category string
	var stats bool
	cmd := &cobra.Command{
		Use:   "faqs",
		Short: "Show popular FAQs, FAQ statistics or one category's entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer closeFn()
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			switch {
			case category != "":
				entries := p.FAQ.Catalog().ByCategory(category)
				if len(entries) == 0 {
					return fmt.Errorf("no FAQ entries in category %q", category)
				}
				if a.asJSON {
					return printJSON(out, entries)
				}
				for _, e := range entries {
					fmt.Fprintf(out, "%-32s %s\n", e.ID, e.PrimaryQuestion)
				}
				return nil

			case stats:
				s, err := p.FAQ.Stats(ctx)
				if err != nil {
					return err
				}
				if a.asJSON {
					return printJSON(out, s)
				}
				fmt.Fprintf(out, "FAQs: %d (%d patterns, %d legacy)\n", s.TotalFAQs, s.TotalPatterns, s.LegacyPatterns)
				fmt.Fprintf(out, "Hits: %d across %d FAQs (hit rate %.1f%%)\n", s.TotalHits, s.FAQsWithHits, s.HitRate*100)
				for _, name := range sortedKeys(s.ByCategory) {
					fmt.Fprintf(out, "  %-20s %d\n", name, s.ByCategory[name])
				}
				return nil
			}

			popular, err := p.FAQ.PopularFAQs(ctx, limit)
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(out, popular)
			}
			if len(popular) == 0 {
				fmt.Fprintln(out, "No FAQ hits recorded yet.")
				return nil
			}
			for i, f := range popular {
				fmt.Fprintf(out, "%d. %s (%d hits)\n", i+1, f.Question, f.Hits)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of popular FAQs to show")
	cmd.Flags().StringVar(&category, "category", "", "list the entries of one category")
	cmd.Flags().BoolVar(&stats, "stats", false, "show catalog and hit statistics")
	return cmd
}

func (a *app) capabilitiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "capabilities",
		Short: "List the intents and record types the assistant understands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer closeFn()

			caps := p.Capabilities()
			out := cmd.OutOrStdout()
			if a.asJSON {
				return printJSON(out, caps)
			}
			fmt.Fprintln(out, "Intents:")
			for _, c := range caps.Intents {
				fmt.Fprintf(out, "  %-12s %s\n", c.Type, c.Description)
				for _, ex := range c.Examples {
					fmt.Fprintf(out, "               - %s\n", ex)
				}
			}
			fmt.Fprintf(out, "Record types: %s\n", strings.Join(caps.AvailableRecordTypes, ", "))
			return nil
		},
	}
}
