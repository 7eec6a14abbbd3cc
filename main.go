// askdata – terminal client for a natural-language data analysis backend.
//
// Entry point: initializes the Cobra root command and launches
// the Bubble Tea TUI by default (no subcommand required).
package main

import (
	"fmt"
	"os"

	"github.com/mateuszbestai/ai-analysis-tool-with-mcp-client-vol2/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "askdata:", err)
		os.Exit(1)
	}
}
