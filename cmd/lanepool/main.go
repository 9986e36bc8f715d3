// Command lanepool drives a priority thread pool from the terminal: a load
// run with per-priority latency summaries, and a strict-ordering check.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
