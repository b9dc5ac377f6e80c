package main

import (
	"encoding/json"
	"fmt"

	goToken "github.com/MrEthical07/goToken"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Print the claims of a token",
		Long: `Decodes TOKEN and prints its claims as JSON.

Without --verify the signature is not checked and no key is needed; the
output must not be trusted. With --verify the token must carry a valid
signature for the configured key, and a blacklisted token is reported when
a Redis address is configured.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := args[0]
			if verify {
				return inspectVerified(cmd, opts, raw)
			}

			// The key only satisfies the builder; unverified decoding never
			// reads it.
			cfg := goToken.DefaultConfig()
			cfg.Ledger.Enabled = false
			cfg.JWT.SigningKey = []byte(uuid.NewString())

			engine, err := goToken.New().WithConfig(cfg).WithLogger(opts.logger(cmd)).Build()
			if err != nil {
				return err
			}
			defer engine.Close()

			claims, err := engine.Inspect(raw, false)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			return printJSON(cmd, claims)
		},
	}
	cmd.Flags().BoolVar(&verify, "verify", false, "check the signature, expiry and blacklist")
	return cmd
}

func inspectVerified(cmd *cobra.Command, opts *rootOptions, raw string) error {
	var (
		engine  *goToken.Engine
		cleanup = func() {}
		err     error
	)
	if opts.redisAddr != "" {
		engine, cleanup, err = opts.ledgerEngine(cmd)
	} else {
		var cfg goToken.Config
		if cfg, err = opts.config(); err == nil {
			cfg.Ledger.Enabled = false
			engine, err = goToken.New().WithConfig(cfg).WithLogger(opts.logger(cmd)).Build()
			cleanup = func() { engine.Close() }
		}
	}
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := engine.Verify(cmd.Context(), raw)
	if err != nil {
		return fmt.Errorf("token rejected: %w", err)
	}
	return printJSON(cmd, t.Claims())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
