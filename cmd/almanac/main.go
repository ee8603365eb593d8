// Command almanac runs the calendar and weather schedulers and offers
// one-shot commands to configure and inspect tenants.
package main

import (
	"os"

	"almanac/cmd/almanac/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
