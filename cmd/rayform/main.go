// Package main is the entry point for the rayform CLI.
//
// rayform provisions a Ray cluster on AWS: a VPC with one public subnet, a
// head node and a configurable number of workers that join it over the
// private network. Every resource is found again by tag, so apply can be
// repeated safely and destroy needs no local state.
//
// Commands: init, plan, apply, outputs, destroy, version.
//
// For detailed usage information, run:
//
//	rayform --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/rayform/cmd/rayform/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
