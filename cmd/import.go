package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/m1k1o/go-portal/internal/store"
)

func init() {
	command := &cobra.Command{
		Use:   "import <file.yml>",
		Short: "import players from yaml file",
		Long:  `import players from yaml file, existing players with the same pId are updated`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return importPlayers(cmd.Context(), args[0])
		},
	}

	rootCmd.AddCommand(command)
}

func importPlayers(ctx context.Context, file string) error {
	inputs, err := readPlayers(file)
	if err != nil {
		return err
	}

	db, err := store.Open(dbConfig.Path)
	if err != nil {
		return fmt.Errorf("unable to open database: %w", err)
	}
	defer db.Close()

	logger := log.With().Str("module", "import").Str("file", file).Logger()

	var created, updated int
	for i, in := range inputs {
		player, isNew, err := db.Upsert(ctx, in)
		if err != nil {
			return fmt.Errorf("player #%d (%s): %w", i+1, in.PID, err)
		}

		if isNew {
			created++
		} else {
			updated++
		}

		logger.Debug().Str("pId", player.PID).Bool("created", isNew).Msg("player imported")
	}

	logger.Info().Int("created", created).Int("updated", updated).Msg("import finished")
	return nil
}

func readPlayers(file string) ([]store.PlayerInput, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var inputs []store.PlayerInput
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", file, err)
	}

	return inputs, nil
}
