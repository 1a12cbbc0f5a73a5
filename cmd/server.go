/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/havenlab/apiserver/config"
	"github.com/havenlab/apiserver/internal/server"
	"github.com/havenlab/apiserver/pkg/log"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the havenlab backend server",
	Long: `Starts the havenlab backend server. Usage:

	havenlab server
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		logger, err := log.New(cfg.LogLevel, cfg.LogFormat, "havenlab-api")
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()

		srv, err := server.New(cmd.Context(), cfg, logger)
		if err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
		defer srv.Shutdown()

		logger.Info("server listening", zap.Int("port", cfg.ServerPort))
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
