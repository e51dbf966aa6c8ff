package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gradpath/advisor/internal/records"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load faculty and program fixtures from a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Migrate(ctx); err != nil {
			return err
		}
		if env.Seeder == nil {
			return eris.New("configured store does not support seeding")
		}

		n, err := records.Seed(ctx, env.Seeder, seedFile)
		if err != nil {
			return err
		}
		zap.L().Info("seed complete", zap.Int("records", n), zap.String("file", seedFile))
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migration complete")
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.yaml", "YAML fixture file")
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(migrateCmd)
}
