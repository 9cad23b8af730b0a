package agent

import (
	"fmt"
	"testing"

	"github.com/harunnryd/voxa/pkg/llm"
)

func TestHistoryTrimKeepsSystemPinned(t *testing.T) {
	const limit = 4
	h := NewHistory("sys", limit)
	for i := 0; i < 25; i++ {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		h.Append(llm.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
		snap := h.Snapshot()
		if len(snap) > limit+1 {
			t.Fatalf("append %d: history length %d exceeds %d", i, len(snap), limit+1)
		}
		if snap[0].Role != llm.RoleSystem || snap[0].Content != "sys" {
			t.Fatalf("append %d: system message not at index 0: %+v", i, snap[0])
		}
	}
	snap := h.Snapshot()
	if snap[len(snap)-1].Content != "m24" || snap[1].Content != "m21" {
		t.Fatalf("expected the most recent window, got %+v", snap)
	}
}

func TestHistoryTrimDropsOrphanToolResults(t *testing.T) {
	h := NewHistory("sys", 3)
	h.Append(llm.Message{Role: llm.RoleUser, Content: "q"})
	h.AppendUntrimmed(
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}},
		llm.Message{Role: llm.RoleTool, ToolCallID: "1", Content: "{}"},
		llm.Message{Role: llm.RoleTool, ToolCallID: "2", Content: "{}"},
	)
	dropped := h.Append(llm.Message{Role: llm.RoleAssistant, Content: "done"})
	snap := h.Snapshot()
	if dropped != 3 || len(snap) != 3 {
		t.Fatalf("expected orphaned results evicted with their call, got dropped=%d %+v", dropped, snap)
	}
	if snap[1].Content != "q" || snap[2].Content != "done" {
		t.Fatalf("unexpected window %+v", snap)
	}
}

func TestHistoryTrimKeepsCurrentQuestion(t *testing.T) {
	h := NewHistory("sys", 3)
	h.Append(llm.Message{Role: llm.RoleUser, Content: "old"})
	h.Append(llm.Message{Role: llm.RoleAssistant, Content: "old reply"})
	h.Append(llm.Message{Role: llm.RoleUser, Content: "q"})
	for i := 1; i <= 2; i++ {
		id := fmt.Sprintf("c%d", i)
		h.AppendUntrimmed(
			llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: id, Name: "a"}}},
			llm.Message{Role: llm.RoleTool, ToolCallID: id, Content: "{}"},
		)
	}
	h.Append(llm.Message{Role: llm.RoleAssistant, Content: "done"})
	snap := h.Snapshot()
	if len(snap) > 4 {
		t.Fatalf("history length %d exceeds bound", len(snap))
	}
	if snap[1].Role != llm.RoleUser || snap[1].Content != "q" {
		t.Fatalf("expected the current question kept, got %+v", snap)
	}
	if snap[len(snap)-1].Content != "done" {
		t.Fatalf("expected the reply last, got %+v", snap)
	}
	for i := 1; i < len(snap); i++ {
		prev := snap[i-1].Role
		if snap[i].Role == llm.RoleTool && (prev == llm.RoleSystem || prev == llm.RoleUser) {
			t.Fatalf("tool result at %d has no preceding call: %+v", i, snap)
		}
	}
}

func TestHistoryResetIsIdempotent(t *testing.T) {
	h := NewHistory("sys", 10)
	h.Append(llm.Message{Role: llm.RoleUser, Content: "x"})
	h.Reset()
	h.Reset()
	if snap := h.Snapshot(); len(snap) != 1 || snap[0].Role != llm.RoleSystem {
		t.Fatalf("expected only system after reset, got %+v", snap)
	}
}

func TestHistorySnapshotIsDefensive(t *testing.T) {
	h := NewHistory("sys", 10)
	h.AppendUntrimmed(llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "1", Name: "a"}}})
	snap := h.Snapshot()
	snap[0].Content = "hacked"
	snap[1].ToolCalls[0].Name = "b"
	again := h.Snapshot()
	if again[0].Content != "sys" || again[1].ToolCalls[0].Name != "a" {
		t.Fatalf("snapshot aliased internal state: %+v", again)
	}
}
