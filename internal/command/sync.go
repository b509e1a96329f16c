package command

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/sakif/tweetsync/internal/config"
	sqliteRepo "github.com/sakif/tweetsync/internal/repository/sqlite"
	"github.com/sakif/tweetsync/internal/scheduler"
	"github.com/sakif/tweetsync/internal/server"
	"github.com/sakif/tweetsync/internal/service"
)

func NewSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass and print its report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Log, cmd.ErrOrStderr())

			if err := ensureDir(cfg.Database.Path); err != nil {
				return err
			}
			db, err := sqliteRepo.New(cfg.Database.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			factory := service.NewClientFactory(server.NewLimiter(cfg.Twitter), logger)
			svc := service.NewSyncService(db, config.NewLive(cfg), factory, logger)

			timeout := cfg.Sync.Timeout
			if timeout <= 0 {
				timeout = scheduler.DefaultTimeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report, err := svc.Sync(ctx)
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(report); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
}
