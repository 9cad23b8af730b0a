// Package builtin provides the assistant's stock tools.
package builtin

import (
	"os"
	"time"

	"github.com/harunnryd/voxa/pkg/tools"
)

type Options struct {
	// Now overrides the clock used by get_current_time.
	Now func() time.Time
	// Hostname overrides os.Hostname for get_system_info.
	Hostname func() (string, error)
	// ExposeSystemCommand advertises execute_system_command. The tool
	// refuses every request either way.
	ExposeSystemCommand bool
}

// Default returns the advertised tool set in stable order.
func Default() []tools.Tool {
	return New(Options{})
}

func New(opts Options) []tools.Tool {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Hostname == nil {
		opts.Hostname = os.Hostname
	}
	list := []tools.Tool{
		CurrentTime(opts.Now),
		Weather(),
		SearchWeb(),
		SystemInfo(opts.Hostname),
		Calculator(),
	}
	if opts.ExposeSystemCommand {
		list = append(list, SystemCommand())
	}
	return list
}
