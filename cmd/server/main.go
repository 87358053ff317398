// Package main is the entry point for the scry review engine. It serves the
// review API, applies database migrations, and runs the reminder sweep.
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
