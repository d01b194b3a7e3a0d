package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/villas-project/villasnode-go/internal/config"
	"github.com/villas-project/villasnode-go/pkg/hook"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration file without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}
			if err := config.Validate(cfg, func(t string) bool {
				_, ok := hook.Lookup(t)
				return ok
			}); err != nil {
				return err
			}
			if _, err := buildNodes(cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid: %d node(s), %d path(s)\n", len(cfg.Nodes), len(cfg.Paths))
			return nil
		},
	}
}
