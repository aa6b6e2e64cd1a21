// Package main provides the pagetune command line: local reading sessions
// with speaker output, manifest import and shelf inspection.
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
