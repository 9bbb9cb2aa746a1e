package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mrsentry",
	Short: "mrsentry is a CLI for automated merge-request review and code retrieval",
	Long:  `A command-line interface for indexing repositories, running reviews, and serving webhook-triggered reviews.`,
}

func Execute() error {
	return rootCmd.Execute()
}
