// Command rrlsched runs the retry-and-rate-limit scheduling engine as a
// standalone process: an HTTP status/control surface in front of
// pkg/scheduler, optionally forwarding accepted requests to a
// downstream URL.
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
