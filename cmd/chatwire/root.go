package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCommand builds the command tree. Each call gets its own viper
// instance, bound to the persistent flags and CHATWIRE_* variables.
func newRootCommand() *cobra.Command {
	cfg := viper.New()

	root := &cobra.Command{
		Use:   "chatwire",
		Short: "Chat completions for OpenAI and Anthropic",
		Long: `chatwire sends chat requests to OpenAI or Anthropic.

Credentials come from OPENAI_KEY / OPENAI_BASE_URL or ANTHROPIC_KEY /
ANTHROPIC_BASE_URL, read from the environment or a .env file. Every flag
can also be set through a CHATWIRE_ variable, e.g. CHATWIRE_PROVIDER.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("provider", "p", "openai", "Provider: openai or anthropic")
	root.PersistentFlags().StringSlice("env-file", nil, "Dotenv files to read credentials from (default .env)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log requests to stderr")

	_ = cfg.BindPFlag("provider", root.PersistentFlags().Lookup("provider"))
	_ = cfg.BindPFlag("env_file", root.PersistentFlags().Lookup("env-file"))
	_ = cfg.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	cfg.SetEnvPrefix("CHATWIRE")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	root.AddCommand(newChatCommand(cfg), newEnvCommand(cfg))
	return root
}
