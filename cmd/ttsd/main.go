// Command ttsd runs the TTS session and synthesis scheduler daemon.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/ttsd/cmd/ttsd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
