package main

import (
	"github.com/spf13/cobra"

	srv "paperbot/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack events server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return srv.Run(cfgPath)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")

	return serve
}
