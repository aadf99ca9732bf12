package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/go-portal/internal/serve"
)

func init() {
	service := serve.NewCommand()

	command := &cobra.Command{
		Use:   "serve",
		Short: "serve portal server",
		Long:  `serve portal server`,
		Run: func(cmd *cobra.Command, args []string) {
			service.Config.Database = dbConfig
			service.Run(cmd, args)
		},
	}

	configs := service.Config.Configs()

	cobra.OnInitialize(func() {
		for _, cfg := range configs {
			cfg.Set()
		}
		service.Preflight()
	})

	for _, cfg := range configs {
		if err := cfg.Init(command); err != nil {
			log.Panic().Err(err).Msg("unable to run serve command")
		}
	}

	rootCmd.AddCommand(command)
}
