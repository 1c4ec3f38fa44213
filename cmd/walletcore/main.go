// Command walletcore runs and inspects a wallet runtime journal.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/walletcore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
