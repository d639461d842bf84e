package main

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	// Version and Commit are set at build time using -ldflags.
	Version = "0.0.0-dev"
	Commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the askdb version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			pterm.Printf("askdb %s (%s)\n", Version, Commit)
		},
	}
}
