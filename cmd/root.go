package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cratefm/logger"
	"cratefm/server"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "cratefm",
	Short: "CrateFM is an AI-assisted DJ crate planner.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(logLevel),
			OutputPath: "logs/cratefm.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		})
	},
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
