package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newFlushExpiredCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush-expired",
		Short: "Delete ledger rows of expired tokens",
		Long: `Deletes every outstanding row whose token has expired, together with
its blacklist row. Expired tokens are rejected on their exp claim, so the
rows carry no information. Run it periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, done, err := opts.ledgerEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			n, err := engine.FlushExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "flushed %d expired row(s)\n", n)
			return nil
		},
	}
}

func newOutstandingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "outstanding USER",
		Short: "List the recorded tokens of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, done, err := opts.ledgerEngine(cmd)
			if err != nil {
				return err
			}
			defer done()

			rows, err := engine.Outstanding(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "JTI\tTYPE\tCREATED\tEXPIRES\tREVOKED")
			for _, r := range rows {
				revoked := "-"
				if r.Revoked {
					revoked = formatUnix(r.RevokedAt)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.JTI, r.TokenType, formatUnix(r.CreatedAt), formatUnix(r.ExpiresAt), revoked)
			}
			return tw.Flush()
		},
	}
}

func formatUnix(sec int64) string {
	if sec == 0 {
		return "-"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}
