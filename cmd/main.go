package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "storyloom",
		Short:         "Turn topics into illustrated storybooks and memes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), generateCmd())

	if err := root.Execute(); err != nil {
		log.Error("storyloom failed", "error", err)
		os.Exit(1)
	}
}
