package commands

import (
	"fmt"
	"io"
	"time"

	"gitvanity/pkg/journal"
	"gitvanity/pkg/types"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newReceiptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipts [commit-prefix]",
		Short: "List the vanity commits written in this repository",
		Long:  `Show the receipts of past runs, newest first, or a single one by (abbreviated) commit id.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if VG == nil {
				return fmt.Errorf("app not initialized")
			}
			out := cmd.OutOrStdout()
			if VG.Journal == nil {
				fmt.Fprintln(out, "Journal is disabled (journal.type is none).")
				return nil
			}

			if len(args) == 1 {
				r, err := VG.Journal.Receipt(cmd.Context(), types.HashPrefix(args[0]))
				if err != nil {
					return fmt.Errorf("invalid commit argument '%s': %w", args[0], err)
				}
				printReceipt(out, r)
				return nil
			}

			receipts, err := VG.Journal.Receipts(cmd.Context())
			if err != nil {
				return err
			}
			if len(receipts) == 0 {
				fmt.Fprintln(out, "No vanity commits yet.")
				return nil
			}
			for i := range receipts {
				printReceipt(out, &receipts[i])
			}
			return nil
		},
	}
}

func printReceipt(out io.Writer, r *journal.Receipt) {
	const (
		colorYellow = "\033[33m"
		colorReset  = "\033[0m"
	)

	fmt.Fprintf(out, "%scommit %s%s\n", colorYellow, r.New, colorReset)
	fmt.Fprintf(out, "Replaces: %s (%s)\n", r.Old, r.Ref)
	fmt.Fprintf(out, "Nonce:    %X\n", r.Nonce)
	if r.Prefix != "" {
		fmt.Fprintf(out, "Prefix:   %s\n", r.Prefix)
	}
	if r.Message != "" {
		fmt.Fprintf(out, "Message:  %s\n", r.Message)
	}
	fmt.Fprintf(out, "Work:     %s %s hashes in %s\n", humanize.Comma(int64(r.Hashes)), r.Algorithm, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Date:     %s\n\n", r.CreatedAt.Format(time.RFC1123))
}
