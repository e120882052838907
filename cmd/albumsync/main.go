// Copyright 2025 Alejan28
// SPDX-License-Identifier: Apache-2.0

// Command albumsync runs the reference album service (serve) and a
// self-contained walkthrough of the offline-first sync flow (demo).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
