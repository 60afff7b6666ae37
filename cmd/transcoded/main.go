// Package main is the entry point for transcoded, a local media
// transcoding daemon (spec §6.5): "--version" prints a version banner and
// exits 0, otherwise the process runs the supervisor accept loop.
package main

import (
	"os"

	"github.com/localmedia/transcoded/cmd/transcoded/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
