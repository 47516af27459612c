// Package main provides the entry point for the mangashelf daemon and CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mangashelf: %v\n", err)
		os.Exit(1)
	}
}
