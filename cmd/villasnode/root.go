package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// Built-in node types self-register via init(); blank-imported here
	// so the registry is populated before any config is loaded.
	_ "github.com/villas-project/villasnode-go/pkg/node/c37118"
	_ "github.com/villas-project/villasnode-go/pkg/node/loopback"
	_ "github.com/villas-project/villasnode-go/pkg/node/mqtt"
	_ "github.com/villas-project/villasnode-go/pkg/node/ngsi"
	_ "github.com/villas-project/villasnode-go/pkg/node/socket"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "villasnode",
		Short:         "Real-time sample routing gateway",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringP("config", "c", "villasnode.yaml", "configuration file")
	root.PersistentFlags().String("log-level", "info", "log level (debug|info|warn|error)")
	viper.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newVersionCmd())
	return root
}
