package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/voice"
	"github.com/harunnryd/voxa/pkg/voxa"
)

func newChatCmd(root *rootOptions) *cobra.Command {
	var stream bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant by typing",
		Long: `Start an interactive text conversation. Type 'exit', 'quit' or 'goodbye'
to leave. Commands:
  /reset            start a new conversation
  /history          print the conversation so far
  /export [path]    save the conversation (.json or .yaml)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			cfg.Vendors.STT.Provider = voxa.ProviderNone
			cfg.Vendors.TTS.Provider = voxa.ProviderNone
			if cmd.Flags().Changed("stream") {
				cfg.Agent.Stream = stream
			}
			return root.run(cmd, cfg, func(ctx context.Context, app *voxa.App) error {
				chat := &voice.Chat{
					Agent:  app.Agent,
					In:     cmd.InOrStdin(),
					Out:    cmd.OutOrStdout(),
					Stream: cfg.Agent.Stream,
					Logger: app.Logger,
				}
				return chat.Run(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&stream, "stream", false, "Stream replies without tool calling")
	return cmd
}
