package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"quizhub-service/internal/config"
)

// NewRankingsCmd runs the batch rank rebuild once; meant for cron.
func NewRankingsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rankings",
		Short: "Recompute global and country ranks for every active user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			svc, err := buildServices(cmd.Context(), cfg, newLogger(cfg))
			if err != nil {
				return err
			}
			defer svc.close()

			report, err := svc.recomputeRanks(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
