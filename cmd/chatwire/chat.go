package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leofalp/chatwire/core/chat"
	"github.com/leofalp/chatwire/core/credentials"
	"github.com/leofalp/chatwire/internal/utils"
	"github.com/leofalp/chatwire/observability/slogobs"
)

const (
	defaultOpenAIModel    = "gpt-4o"
	defaultAnthropicModel = "claude-3-5-sonnet-latest"

	// Anthropic rejects requests without max_tokens.
	defaultAnthropicMaxTokens = 1024
)

// chatOptions is the resolved input of one chat invocation.
type chatOptions struct {
	provider    credentials.Provider
	creds       credentials.Credentials
	model       string
	system      string
	messages    []chat.Message
	maxTokens   int
	temperature *float64
	stream      bool
	verbose     bool
}

func newChatCommand(cfg *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [prompt]",
		Short: "Send a chat request",
		Long: `Send a chat request and print the assistant's reply.

The prompt is appended as a user message to the conversation loaded with
--conversation, if any. With --stream, text is printed as it arrives.`,
		Example: `  chatwire chat "What is the capital of Italy?"
  chatwire chat -p anthropic --max-tokens 256 --stream "Tell me a story"
  chatwire chat --conversation thread.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveChatOptions(cfg, args)
			if err != nil {
				return err
			}
			if opts.provider == credentials.Anthropic {
				return runChat(cmd.Context(), configure(chat.NewAnthropicChatCompletion(opts.model, opts.system), opts, cmd.ErrOrStderr()), opts.stream, cmd.OutOrStdout())
			}
			return runChat(cmd.Context(), configure(chat.NewChatCompletion(opts.model), opts, cmd.ErrOrStderr()), opts.stream, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("model", "m", "", "Model name (default depends on provider)")
	cmd.Flags().StringP("system", "s", "", "System prompt")
	cmd.Flags().Int("max-tokens", 0, "Maximum tokens to generate")
	cmd.Flags().Float64P("temperature", "t", 0, "Sampling temperature")
	cmd.Flags().Bool("stream", false, "Stream the reply")
	cmd.Flags().StringP("conversation", "c", "", "YAML file with prior messages")

	_ = cfg.BindPFlag("model", cmd.Flags().Lookup("model"))
	_ = cfg.BindPFlag("system", cmd.Flags().Lookup("system"))
	_ = cfg.BindPFlag("max_tokens", cmd.Flags().Lookup("max-tokens"))
	_ = cfg.BindPFlag("temperature", cmd.Flags().Lookup("temperature"))
	_ = cfg.BindPFlag("stream", cmd.Flags().Lookup("stream"))
	_ = cfg.BindPFlag("conversation", cmd.Flags().Lookup("conversation"))

	return cmd
}

func resolveChatOptions(cfg *viper.Viper, args []string) (chatOptions, error) {
	provider, err := credentials.ParseProvider(cfg.GetString("provider"))
	if err != nil {
		return chatOptions{}, err
	}

	conv, err := loadConversation(cfg.GetString("conversation"))
	if err != nil {
		return chatOptions{}, err
	}

	messages := conv.Messages
	if len(args) == 1 {
		messages = append(messages, chat.UserMessage(args[0]))
	}
	if len(messages) == 0 {
		return chatOptions{}, &usageError{msg: "a prompt or a --conversation file is required"}
	}

	creds, err := credentials.Load(provider, cfg.GetStringSlice("env_file")...)
	if err != nil {
		return chatOptions{}, err
	}

	opts := chatOptions{
		provider:  provider,
		creds:     creds,
		model:     firstNonEmpty(cfg.GetString("model"), conv.Model, defaultModel(provider)),
		system:    firstNonEmpty(cfg.GetString("system"), conv.System),
		messages:  messages,
		maxTokens: cfg.GetInt("max_tokens"),
		stream:    cfg.GetBool("stream"),
		verbose:   cfg.GetBool("verbose"),
	}
	if cfg.IsSet("temperature") {
		temperature := cfg.GetFloat64("temperature")
		opts.temperature = &temperature
	}
	if opts.maxTokens == 0 && provider == credentials.Anthropic {
		opts.maxTokens = defaultAnthropicMaxTokens
	}
	return opts, nil
}

func configure[T chat.Completion](b chat.Builder[T], opts chatOptions, logOutput io.Writer) chat.Builder[T] {
	b = b.Credentials(opts.creds).Messages(opts.messages...)
	if opts.system != "" {
		b = b.System(opts.system)
	}
	if opts.maxTokens > 0 {
		b = b.MaxTokens(opts.maxTokens)
	}
	if opts.temperature != nil {
		b = b.Temperature(*opts.temperature)
	}
	if opts.verbose {
		b = b.Observer(slogobs.New(slogobs.WithLevel(slog.LevelDebug), slogobs.WithOutput(logOutput)))
	}
	return b
}

// reply is satisfied by both completion types.
type reply interface {
	Text() string
}

func runChat[T chat.Completion](ctx context.Context, b chat.Builder[T], stream bool, out io.Writer) error {
	if !stream {
		completion, err := b.Create(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, any(*completion).(reply).Text())
		return nil
	}

	s, err := b.Stream(ctx)
	if err != nil {
		return err
	}
	defer utils.CloseWithLog(s)

	for delta, err := range s.Iter() {
		if err != nil {
			return err
		}
		if delta.Kind == chat.DeltaContent {
			fmt.Fprint(out, delta.Text)
		}
	}
	fmt.Fprintln(out)

	if folded := s.Result(); folded.Err != nil {
		return folded.Err
	}
	return nil
}

func defaultModel(provider credentials.Provider) string {
	if provider == credentials.Anthropic {
		return defaultAnthropicModel
	}
	return defaultOpenAIModel
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
