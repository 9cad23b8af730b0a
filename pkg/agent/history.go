package agent

import (
	"sync"

	"github.com/harunnryd/voxa/pkg/llm"
)

// History is the conversation log. Index 0 always holds the single system
// message; the rest is a sliding window of at most maxHistory entries.
type History struct {
	mu         sync.RWMutex
	maxHistory int
	msgs       []llm.Message
}

// NewHistory starts a log holding only the system message. A maxHistory
// of zero or less disables trimming.
func NewHistory(system string, maxHistory int) *History {
	return &History{
		maxHistory: maxHistory,
		msgs:       []llm.Message{{Role: llm.RoleSystem, Content: system}},
	}
}

// Append adds msg and trims the window. It returns how many messages were
// evicted.
func (h *History) Append(msg llm.Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, cloneMessage(msg))
	return h.trimLocked()
}

// AppendUntrimmed adds the tool-call and tool-result messages of an
// iteration without evicting anything, so a call is never separated from
// its results mid-turn.
func (h *History) AppendUntrimmed(msgs ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range msgs {
		h.msgs = append(h.msgs, cloneMessage(msg))
	}
}

// trimLocked keeps the system message and the newest maxHistory entries.
// The window never opens on tool results whose call was evicted, and the
// user message of the current turn stays when the window would lose it.
func (h *History) trimLocked() int {
	if h.maxHistory <= 0 || len(h.msgs) <= 1+h.maxHistory {
		return 0
	}
	start := h.skipResults(len(h.msgs) - h.maxHistory)
	pin := h.lastUser()
	if pin >= start || h.maxHistory < 2 {
		pin = 0
	} else if len(h.msgs)-start > h.maxHistory-1 {
		start = h.skipResults(start + 1)
	}
	kept := make([]llm.Message, 0, 2+len(h.msgs)-start)
	kept = append(kept, h.msgs[0])
	if pin > 0 {
		kept = append(kept, h.msgs[pin])
	}
	kept = append(kept, h.msgs[start:]...)
	dropped := len(h.msgs) - len(kept)
	h.msgs = kept
	return dropped
}

func (h *History) skipResults(i int) int {
	for i < len(h.msgs) && h.msgs[i].Role == llm.RoleTool {
		i++
	}
	return i
}

func (h *History) lastUser() int {
	for i := len(h.msgs) - 1; i > 0; i-- {
		if h.msgs[i].Role == llm.RoleUser {
			return i
		}
	}
	return 0
}

// SetSystem replaces the system message in place.
func (h *History) SetSystem(text string) {
	h.mu.Lock()
	h.msgs[0] = llm.Message{Role: llm.RoleSystem, Content: text}
	h.mu.Unlock()
}

func (h *History) System() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.msgs[0].Content
}

// Reset drops everything but the system message.
func (h *History) Reset() {
	h.mu.Lock()
	h.msgs = h.msgs[:1:1]
	h.mu.Unlock()
}

// Snapshot returns a deep copy of the log.
func (h *History) Snapshot() []llm.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return llm.CloneMessages(h.msgs)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

func cloneMessage(msg llm.Message) llm.Message {
	if len(msg.ToolCalls) > 0 {
		msg.ToolCalls = append([]llm.ToolCall(nil), msg.ToolCalls...)
	}
	return msg
}
