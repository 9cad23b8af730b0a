package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/agent"
	"github.com/harunnryd/voxa/pkg/voxa"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	var exportPath string
	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			cfg.Vendors.STT.Provider = voxa.ProviderNone
			cfg.Vendors.TTS.Provider = voxa.ProviderNone
			question := strings.Join(args, " ")
			return root.run(cmd, cfg, func(ctx context.Context, app *voxa.App) error {
				res := app.Agent.Turn(ctx, question)
				fmt.Fprintln(cmd.OutOrStdout(), res.Text)
				if exportPath == "" {
					return nil
				}
				return exportHistory(exportPath, app.Agent)
			})
		},
	}
	cmd.Flags().StringVar(&exportPath, "export", "", "Write the conversation to this file (.json or .yaml)")
	return cmd
}

func exportHistory(path string, a *agent.Agent) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := agent.ExportHistory(f, a.GetHistory(), agent.FormatForPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
