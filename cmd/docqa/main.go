package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{
		Use:          "docqa",
		Short:        "Ask questions about an uploaded document",
		SilenceUsage: true,
	}

	root.AddCommand(serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
