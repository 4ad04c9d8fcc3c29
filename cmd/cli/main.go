package main

import (
	"fmt"
	"os"

	"github.com/hprof-analysis/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// All failures surface as a single message on standard output.
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
}
