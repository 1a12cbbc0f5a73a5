/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/havenlab/apiserver/config"
	"github.com/havenlab/apiserver/internal/db"
	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/pkg/log"
	"github.com/spf13/cobra"
)

var syncDiagnose bool

// syncCmd repairs one user's identity mirror from the terminal. It is the
// operational fallback when the admin endpoint is unreachable.
var syncCmd = &cobra.Command{
	Use:   "sync <user-id>",
	Short: "Reconcile a user with the identity provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		logger, err := log.New(cfg.LogLevel, "console", "havenlab-sync")
		if err != nil {
			return err
		}
		defer logger.Sync()

		mongoDB, err := db.OpenMongo(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		defer mongoDB.Client().Disconnect(cmd.Context())

		provider, err := identity.NewClient(cfg.Identity, logger)
		if err != nil {
			return err
		}

		syncService := services.NewSyncService(provider, store.NewUserRepository(mongoDB), nil, logger)

		if syncDiagnose {
			snapshot, err := syncService.LoadSnapshot(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(snapshot)
		}

		result, err := syncService.SyncUser(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncDiagnose, "diagnose", false, "inspect both sides without writing")
}
