package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newRevokeCmd(opts *rootOptions) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "revoke [TOKEN]",
		Short: "Blacklist a refresh or sliding token",
		Long: `Blacklists TOKEN in the revocation ledger. Revoking a token twice is
not an error.

With --user every outstanding token of that user is revoked instead.
Access tokens cannot be revoked; they stay valid until they expire.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (user == "") == (len(args) == 0) {
				return errors.New("pass exactly one of TOKEN or --user")
			}

			engine, done, err := opts.ledgerEngine(cmd)
			if err != nil {
				return err
			}
			defer done()
			out := cmd.OutOrStdout()

			if user != "" {
				n, err := engine.RevokeAllForUser(cmd.Context(), user)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "revoked %d token(s) of user %s\n", n, user)
				return nil
			}

			changed, err := engine.Revoke(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if changed {
				fmt.Fprintln(out, "token revoked")
			} else {
				fmt.Fprintln(out, "token was already revoked")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "revoke every outstanding token of this user")
	return cmd
}
