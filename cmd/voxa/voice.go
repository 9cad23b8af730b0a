package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/audio"
	"github.com/harunnryd/voxa/pkg/voice"
	"github.com/harunnryd/voxa/pkg/voxa"
)

func newVoiceCmd(root *rootOptions) *cobra.Command {
	var input, output string
	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Answer recorded utterances with spoken replies",
		Long: `Transcribe each audio file from --input (a file or a directory, taken in
name order), answer it and write the spoken reply into --output.
An utterance containing 'exit', 'quit', 'goodbye' or 'bye bye' ends the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if input == "" {
				input = cfg.Audio.Input
			}
			if output == "" {
				output = cfg.Audio.Output
			}
			if input == "" {
				return errors.New("--input or audio.input is required")
			}
			source, err := audio.NewSource(input)
			if err != nil {
				return err
			}
			var sink audio.Sink = audio.DiscardSink{}
			if output != "-" {
				dir, err := audio.NewDirSink(output)
				if err != nil {
					return err
				}
				sink = dir
			}
			return root.run(cmd, cfg, func(ctx context.Context, app *voxa.App) error {
				if app.Transcriber == nil {
					return errors.New("voice mode needs an stt provider")
				}
				loop := &voice.Loop{
					Source:      source,
					Transcriber: app.Transcriber,
					Agent:       app.Agent,
					Synthesizer: app.Synthesizer,
					Sink:        sink,
					Out:         cmd.OutOrStdout(),
					Logger:      app.Logger,
					Observer:    app.Observer,
				}
				stats, err := loop.Run(ctx)
				app.Logger.Info("voice_session_ended", "turns", stats.Turns, "skipped", stats.Skipped, "exited", stats.Exited)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Audio file or directory of utterances")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory for spoken replies ('-' discards them)")
	return cmd
}
