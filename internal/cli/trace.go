package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bangle-io/nalanda-sub001/internal/trace"
	"github.com/bangle-io/nalanda-sub001/internal/tracelog"
)

// StoreSummary counts the records persisted for one store.
type StoreSummary struct {
	Store      string `json:"store"`
	Tx         int    `json:"tx"`
	Effects    int    `json:"effects"`
	Operations int    `json:"operations"`
}

// TraceResult is the output of the trace command for one store.
type TraceResult struct {
	Store   string         `json:"store"`
	Records []trace.Record `json:"records"`
	Summary StoreSummary   `json:"summary"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a persisted trace database",
		Long: `List the stores recorded in a trace database, or with --store print
that store's records in sequence order.

Examples:
  nalanda trace --db ./trace.db
  nalanda trace --db ./trace.db --store counter
  nalanda trace --db ./trace.db --store counter --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, cmd)
		},
	}

	cmd.Flags().String("db", "", "path to the trace database (required)")
	cmd.Flags().String("store", "", "store whose records to print")
	return cmd
}

func runTrace(opts *RootOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	dbPath := opts.String("db")
	if dbPath == "" {
		return f.Fail(ExitCommandError, CodeGeneric, "--db is required", nil)
	}
	// Opening creates a missing database; refuse instead of reporting an
	// empty trace.
	if _, err := os.Stat(dbPath); err != nil {
		return f.Fail(ExitCommandError, CodeNotFound, "trace database not found", err)
	}

	tl, err := tracelog.Open(dbPath, tracelog.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		return f.Fail(ExitCommandError, CodeTraceDB, "cannot open trace database", err)
	}
	defer tl.Close()

	storeName := opts.String("store")
	if storeName == "" {
		return listStores(ctx, f, tl)
	}

	records, err := tl.Records(ctx, storeName)
	if err != nil {
		return f.Fail(ExitCommandError, CodeTraceDB, "cannot read records", err)
	}
	if len(records) == 0 {
		return f.Fail(ExitFailure, CodeNotFound, fmt.Sprintf("no records for store %q", storeName), nil)
	}

	result := TraceResult{
		Store:   storeName,
		Records: records,
		Summary: summarize(storeName, records),
	}
	if f.JSON() {
		return f.Success(result)
	}

	for _, r := range records {
		fmt.Fprintf(f.Writer, "%4d  %-9s %s\n", r.Seq, r.Type, describeRecord(r))
	}
	fmt.Fprintf(f.Writer, "\n%d tx, %d effect run(s), %d operation run(s)\n",
		result.Summary.Tx, result.Summary.Effects, result.Summary.Operations)
	return nil
}

func listStores(ctx context.Context, f *OutputFormatter, tl *tracelog.Log) error {
	stores, err := tl.Stores(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, CodeTraceDB, "cannot list stores", err)
	}

	summaries := make([]StoreSummary, 0, len(stores))
	for _, name := range stores {
		counts, err := tl.Counts(ctx, name)
		if err != nil {
			return f.Fail(ExitCommandError, CodeTraceDB, "cannot count records", err)
		}
		summaries = append(summaries, StoreSummary{
			Store:      name,
			Tx:         counts[trace.TypeTx],
			Effects:    counts[trace.TypeEffect],
			Operations: counts[trace.TypeOperation],
		})
	}

	if f.JSON() {
		return f.Success(summaries)
	}
	if len(summaries) == 0 {
		fmt.Fprintln(f.Writer, "No stores recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(f.Writer, "%s: %d tx, %d effect run(s), %d operation run(s)\n",
			s.Store, s.Tx, s.Effects, s.Operations)
	}
	return nil
}

func summarize(store string, records []trace.Record) StoreSummary {
	s := StoreSummary{Store: store}
	for _, r := range records {
		switch r.Type {
		case trace.TypeTx:
			s.Tx++
		case trace.TypeEffect:
			s.Effects++
		case trace.TypeOperation:
			s.Operations++
		}
	}
	return s
}

func describeRecord(r trace.Record) string {
	switch r.Type {
	case trace.TypeTx:
		if r.Noop {
			return fmt.Sprintf("%s %s (noop)", r.TxID, r.ActionID)
		}
		return fmt.Sprintf("%s %s changed=[%s]", r.TxID, r.ActionID, strings.Join(r.Changed, " "))
	case trace.TypeEffect:
		return fmt.Sprintf("%s run=%d", r.Effect, r.Run)
	case trace.TypeOperation:
		return fmt.Sprintf("%s run=%d", r.Operation, r.Run)
	}
	return ""
}
