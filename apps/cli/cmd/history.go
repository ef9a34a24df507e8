package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitexec/packages/core/config"
	"github.com/abdul-hamid-achik/hitexec/packages/history"
	"github.com/abdul-hamid-achik/hitexec/packages/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded exchanges",
	Long: `Show exchanges recorded by "hitexec send --history".

Examples:
  hitexec history --db .hitexec/history.db
  hitexec history --failed --limit 50
  hitexec history --method POST
  hitexec history --prune 168h`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

type historyOptions struct {
	db      string
	limit   int
	method  string
	failed  bool
	prune   string
	config  string
	noColor bool
}

var historyOpts historyOptions

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyOpts.db, "db", getEnvString("HITEXEC_HISTORY", ""), "History database (default: history from the config file) (env: HITEXEC_HISTORY)")
	f.IntVarP(&historyOpts.limit, "limit", "n", 20, "Maximum number of entries to show")
	f.StringVarP(&historyOpts.method, "method", "X", "", "Only show this HTTP method")
	f.BoolVar(&historyOpts.failed, "failed", false, "Only show failed exchanges")
	f.StringVar(&historyOpts.prune, "prune", "", "Delete entries older than this duration (e.g., 168h) instead of listing")
	f.StringVar(&historyOpts.config, "config", getEnvString("HITEXEC_CONFIG", ""), "Path to config file (env: HITEXEC_CONFIG)")
	f.BoolVar(&historyOpts.noColor, "no-color", getEnvBool("HITEXEC_NO_COLOR", false), "Disable colored output (env: HITEXEC_NO_COLOR)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	return showHistory(cmd, cmd.OutOrStdout(), historyOpts)
}

func showHistory(cmd *cobra.Command, out io.Writer, opts historyOptions) error {
	path := opts.db
	if path == "" {
		cfg, err := config.LoadConfig(opts.config)
		if err != nil {
			return configError(fmt.Errorf("failed to load config: %w", err))
		}
		path = cfg.History
	}
	if path == "" {
		return usageError(errors.New("no history database: pass --db or set history in the config file"))
	}

	store, err := history.Open(path)
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	ctx := cmd.Context()

	if opts.prune != "" {
		olderThan, err := time.ParseDuration(opts.prune)
		if err != nil {
			return usageError(fmt.Errorf("invalid --prune: %w", err))
		}
		n, err := store.Prune(ctx, olderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d entries\n", n)
		return nil
	}

	entries, err := store.List(ctx, history.Filter{
		Limit:      opts.limit,
		Method:     opts.method,
		FailedOnly: opts.failed,
	})
	if err != nil {
		return err
	}

	formatter := output.NewConsoleFormatter(output.WithWriter(out), output.WithNoColor(opts.noColor))
	formatter.FormatHistory(entries)
	return nil
}
