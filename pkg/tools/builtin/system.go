package builtin

import (
	"context"
	"runtime"

	"github.com/harunnryd/voxa/pkg/tools"
)

func SystemInfo(hostname func() (string, error)) tools.Tool {
	return tools.Tool{
		Schema: tools.Schema{
			Name:        "get_system_info",
			Description: "Get information about the computer system. Use this when the user asks about system specifications or OS details.",
		},
		Handler: func(context.Context, tools.Args) tools.Result {
			host, err := hostname()
			if err != nil {
				host = "unknown"
			}
			return tools.Success(map[string]any{
				"system":     runtime.GOOS,
				"machine":    runtime.GOARCH,
				"cpus":       runtime.NumCPU(),
				"go_version": runtime.Version(),
				"hostname":   host,
			})
		},
	}
}

// SystemCommand never runs anything. It exists so a model that asks for
// shell access receives an explicit refusal.
func SystemCommand() tools.Tool {
	return tools.Tool{
		Schema: tools.Schema{
			Name:        "execute_system_command",
			Description: "Execute a system command. Disabled: always refuses.",
			Parameters: []tools.Parameter{
				{Name: "command", Type: tools.TypeString, Description: "System command to execute", Required: true},
			},
		},
		Handler: func(_ context.Context, args tools.Args) tools.Result {
			return tools.Result{
				Status: tools.StatusError,
				Kind:   tools.KindRefused,
				Error:  "System command execution is disabled for security reasons.",
				Data:   map[string]any{"command": args.String("command", "")},
			}
		},
	}
}
