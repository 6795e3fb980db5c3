package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"scribe/internal/ledger"
	"scribe/internal/logging"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and manage the dedup ledger",
	}

	ledgerCmd.AddCommand(newLedgerListCommand(ctx))
	ledgerCmd.AddCommand(newLedgerSummaryCommand(ctx))
	ledgerCmd.AddCommand(newLedgerRetryCommand(ctx))

	return ledgerCmd
}

func (c *commandContext) withLedger(fn func(context.Context, *ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg, logging.NewNop())
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer store.Close()
	return fn(context.Background(), store)
}

func newLedgerListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cmdCtx context.Context, store *ledger.Store) error {
				statuses, err := parseStatuses(statusFlag)
				if err != nil {
					return err
				}
				records, err := store.List(cmdCtx, statuses...)
				if err != nil {
					return fmt.Errorf("list ledger records: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No ledger records found")
					return nil
				}

				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						shortKey(record.Key),
						string(record.Status),
						record.MediaKind,
						strconv.Itoa(record.Attempts),
						record.Locator,
						record.UpdatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"KEY", "STATUS", "KIND", "ATTEMPTS", "LOCATOR", "UPDATED"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (pending, done, failed; comma-separated)")
	return cmd
}

func newLedgerSummaryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show ledger record counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cmdCtx context.Context, store *ledger.Store) error {
				summary, err := store.Summarize(cmdCtx)
				if err != nil {
					return fmt.Errorf("summarize ledger: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderTable(
					[]string{"STATUS", "COUNT"},
					[][]string{
						{"pending", strconv.Itoa(summary.Pending)},
						{"done", strconv.Itoa(summary.Done)},
						{"failed", strconv.Itoa(summary.Failed)},
						{"total", strconv.Itoa(summary.Total)},
					},
					[]columnAlignment{alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newLedgerRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <key>",
		Short: "Forget a failed record so the item can run again",
		Long:  "Removes a non-done ledger record. The next time the item is discovered it is admitted as new work. Accepts a full key or an unambiguous prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(func(cmdCtx context.Context, store *ledger.Store) error {
				key, err := resolveKey(cmdCtx, store, args[0])
				if err != nil {
					return err
				}
				if err := store.Forget(cmdCtx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s; it will be re-admitted on next discovery\n", shortKey(key))
				return nil
			})
		},
	}
}

func parseStatuses(flag string) ([]ledger.Status, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return nil, nil
	}
	var statuses []ledger.Status
	for _, part := range strings.Split(flag, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		status := ledger.Status(part)
		switch status {
		case ledger.StatusPending, ledger.StatusDone, ledger.StatusFailed:
			statuses = append(statuses, status)
		default:
			return nil, fmt.Errorf("unknown status %q (expected pending, done, or failed)", part)
		}
	}
	return statuses, nil
}

// resolveKey accepts a full 64-char key or a unique prefix.
func resolveKey(ctx context.Context, store *ledger.Store, input string) (string, error) {
	input = strings.ToLower(strings.TrimSpace(input))
	if len(input) == 64 {
		return input, nil
	}
	if input == "" {
		return "", fmt.Errorf("key is required")
	}
	records, err := store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list ledger records: %w", err)
	}
	var matches []string
	for _, record := range records {
		if strings.HasPrefix(record.Key, input) {
			matches = append(matches, record.Key)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no ledger record matches key prefix %q", input)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("key prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

func shortKey(key string) string {
	if len(key) <= 12 {
		return key
	}
	return key[:12]
}
