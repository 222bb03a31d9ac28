package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/core/llmerr"
)

func newEnvCommand(cfg *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the resolved credentials configuration",
		Long:  "Print the provider, base URL and whether an API key is configured. The key itself is never printed.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := credentials.ParseProvider(cfg.GetString("provider"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %s\n", provider)

			creds, err := credentials.Load(provider, cfg.GetStringSlice("env_file")...)
			var configErr *llmerr.ConfigurationError
			switch {
			case err == nil:
				fmt.Fprintf(out, "base_url: %s\n", creds.BaseURL())
				fmt.Fprintln(out, "api_key: configured")
			case errors.As(err, &configErr):
				fmt.Fprintf(out, "base_url: %s\n", provider.DefaultBaseURL())
				fmt.Fprintf(out, "api_key: missing (%s)\n", configErr.Field)
			default:
				return err
			}
			return nil
		},
	}
}
