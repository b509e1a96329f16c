// Command tweetsync pulls tweets from the Twitter API into SQLite and serves
// a moderation API on top of them.
package main

import (
	"fmt"
	"os"

	"github.com/sakif/tweetsync/internal/command"
)

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func main() {
	if err := command.NewRootCmd(Version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
