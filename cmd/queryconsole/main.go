// Command queryconsole is a terminal front-end for an external database
// executable: queries typed into the window go to the child's stdin and
// everything it prints comes back into a scrolling transcript.
package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := newRootCmd()
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "queryconsole fatal error: %v\n", err)
		os.Exit(1)
	}
}
