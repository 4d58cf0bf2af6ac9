package cmd

import (
	"github.com/spf13/cobra"

	"cratefm/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the CrateFM HTTP server",
	Long:  `Start the HTTP server exposing the planning, catalog, import and snapshot API.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
