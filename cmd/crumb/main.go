// Package main is the single-binary entrypoint for crumb: the daemon
// and its CLI in one executable.
package main

import "github.com/crumbnet/crumb/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
