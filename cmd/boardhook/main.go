// Command boardhook relays the activity of a Trello board to a Discord
// channel through a webhook.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/boardhook/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "boardhook: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
