package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/harunnryd/voxa/pkg/agent"
	"github.com/harunnryd/voxa/pkg/logging"
)

// Chat is the text front end. Lines starting with "/" are commands:
// /reset, /history and /export [path].
type Chat struct {
	Agent       *agent.Agent
	In          io.Reader
	Out         io.Writer
	Stream      bool
	ExitPhrases []string
	Logger      *slog.Logger
	Now         func() time.Time
}

func (c *Chat) Run(ctx context.Context) error {
	log := logging.NewComponentLogger(c.Logger, "chat")
	phrases := c.ExitPhrases
	if len(phrases) == 0 {
		phrases = DefaultExitPhrases
	}
	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(c.In, done)

	log.Info("chat_started", "conversation_id", c.Agent.ID(), "stream", c.Stream)
	for {
		fmt.Fprint(c.Out, "You: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.Out)
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.Out)
				return <-readErr
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if err := c.command(line); err != nil {
				log.Warn("chat_command_failed", "command", line, "error", err)
				fmt.Fprintf(c.Out, "Error: %v\n\n", err)
			}
			continue
		}
		if IsExit(line, phrases) {
			fmt.Fprintf(c.Out, "Assistant: %s\n", Farewell)
			return nil
		}
		c.answer(ctx, line)
	}
}

// readLines feeds lines from r until EOF or done so a blocked read never
// holds up cancellation.
func readLines(r io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}

func (c *Chat) answer(ctx context.Context, line string) {
	if !c.Stream {
		fmt.Fprintf(c.Out, "Assistant: %s\n\n", c.Agent.ProcessInput(ctx, line))
		return
	}
	fmt.Fprint(c.Out, "Assistant: ")
	for chunk := range c.Agent.StreamInput(ctx, line) {
		fmt.Fprint(c.Out, chunk)
	}
	fmt.Fprint(c.Out, "\n\n")
}

func (c *Chat) command(line string) error {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/reset":
		c.Agent.ResetConversation()
		fmt.Fprint(c.Out, "Conversation reset.\n\n")
	case "/history":
		for _, msg := range c.Agent.GetHistory() {
			content := msg.Content
			if content == "" && len(msg.ToolCalls) > 0 {
				names := make([]string, len(msg.ToolCalls))
				for i, call := range msg.ToolCalls {
					names[i] = call.Name
				}
				content = "[calls " + strings.Join(names, ", ") + "]"
			}
			fmt.Fprintf(c.Out, "[%s] %s\n", msg.Role, content)
		}
		fmt.Fprintln(c.Out)
	case "/export":
		path := arg
		if path == "" {
			path = agent.ExportFileName(c.now())
		}
		if err := c.export(path); err != nil {
			return err
		}
		fmt.Fprintf(c.Out, "History exported to %s\n\n", path)
	default:
		return fmt.Errorf("unknown command %s", name)
	}
	return nil
}

func (c *Chat) export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := agent.ExportHistory(f, c.Agent.GetHistory(), agent.FormatForPath(path)); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (c *Chat) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
