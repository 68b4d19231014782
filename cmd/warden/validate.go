package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/infrastructure/config"
)

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file without starting the supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.Load(afero.NewOsFs(), *configPath); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		},
	}
}
