// Command gotoken is the operator tool for a goToken deployment: it inspects
// tokens, revokes them, maintains the revocation ledger and load-tests the
// engine.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
