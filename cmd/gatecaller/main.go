// GateCaller drives an airport public-address system from a live flight
// feed.
//
// Usage:
//
//	gatecaller run
//	gatecaller resolve --ident AF456 --call boarding --airline AF --dest JFK --gate 12
//	gatecaller gate [--at 2025-07-01T14:30:00+02:00]
//	gatecaller history [-n 20]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "gatecaller",
		Short:         "Automated flight announcements for airport PA systems",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newResolveCmd(), newGateCmd(), newHistoryCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
