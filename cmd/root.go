// Package cmd contains the lore CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lore",
	Short: "lore - a knowledge-grounded chat assistant",
	Long: `lore is a chat assistant that answers only from its own knowledge base.

Facts are chunked, embedded, and stored in PostgreSQL with pgvector;
the model retrieves them by cosine similarity before answering, and
refuses when it knows nothing relevant.

Run "lore serve" to start the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
