// Command venuectl runs venue discovery and inspects favorites from the
// command line, using the same environment configuration as the service.
//
// Usage:
//
//	venuectl discover --lat 55.6761 --lng 12.5683 --keyword snooker
//	venuectl favorites list --user u-123
//	venuectl favorites watch --user u-123
//	venuectl events
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
