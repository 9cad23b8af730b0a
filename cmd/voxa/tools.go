package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/harunnryd/voxa/pkg/tools"
	"github.com/harunnryd/voxa/pkg/tools/builtin"
)

func newToolsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the tool schemas advertised to the model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.NewRegistry(builtin.New(builtin.Options{
				ExposeSystemCommand: root.cfg.Tools.ExposeSystemCommand,
			})...)
			if err != nil {
				return err
			}
			type toolDoc struct {
				Name        string         `json:"name"`
				Description string         `json:"description"`
				Parameters  map[string]any `json:"parameters"`
			}
			docs := make([]toolDoc, 0, registry.Len())
			for _, s := range registry.Schemas() {
				docs = append(docs, toolDoc{Name: s.Name, Description: s.Description, Parameters: s.JSONSchema()})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(docs)
		},
	}
}
