package main

import (
	"fmt"
	"net/url"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  "Prints the configuration after defaults, config.yaml, .env and BOUNDARY_* variables are applied.",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		if u, err := url.Parse(shown.Store.DatabaseURL); err == nil && u.User != nil {
			shown.Store.DatabaseURL = u.Redacted()
		}
		out, err := yaml.Marshal(&shown)
		if err != nil {
			return eris.Wrap(err, "config: encode yaml")
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
