package app

import (
	"github.com/JongoDB/arc4de/internal/config"
	"github.com/spf13/cobra"
)

func ARC4DE() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "",
		Short: "ARC4DE",
		Long:  "ARC4DE. Self-hosted remote terminal access server over authenticated WebSockets.",
		Run: func(cmd *cobra.Command, args []string) {
			Run(cmd, configFile)
		},
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "config.json", "path to config file")
	config.DefineFlags(cmd)
	return cmd
}
