// Command jvmpulse is the companion CLI for the JVMPulse agent: it validates
// configs, lists the events and capabilities the agent knows, runs the full
// agent against a simulated VM, and hosts the backend services: the
// NATS→ClickHouse sink and the query API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jvmpulse: %v\n", err)
		os.Exit(1)
	}
}
