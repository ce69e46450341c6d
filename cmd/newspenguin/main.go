// Package main is the entry point for newspenguin.
package main

import (
	"fmt"
	"os"

	"newspenguin/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "newspenguin: %v\n", err)
		os.Exit(1)
	}
}
