package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"midicccv/midicc"
)

func callTool(t *testing.T, handler server.ToolHandlerFunc, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("handler failed: %v", err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()

	if len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestMCPLearn(t *testing.T) {
	h := NewHost()

	res := callTool(t, learnHandler(h), map[string]any{"slot": float64(4)})
	if res.IsError {
		t.Fatalf("learn returned error: %s", resultText(t, res))
	}

	h.Queue().Push(midicc.ControlChange(0, 77, 12))
	h.Step(0.001)

	var status []SlotStatus
	res = callTool(t, outputsHandler(h), nil)
	if err := json.Unmarshal([]byte(resultText(t, res)), &status); err != nil {
		t.Fatalf("failed to unmarshal outputs: %v", err)
	}
	if len(status) != midicc.NumSlots {
		t.Fatalf("expected %d slots, got %d", midicc.NumSlots, len(status))
	}
	if status[3].Controller != 77 {
		t.Errorf("expected slot 4 bound to 77, got %d", status[3].Controller)
	}
	if status[3].Learning {
		t.Errorf("slot 4 still learning after binding")
	}
}

func TestMCPLearnInvalidSlot(t *testing.T) {
	h := NewHost()

	for _, args := range []map[string]any{
		{"slot": float64(0)},
		{"slot": float64(17)},
		{},
	} {
		res := callTool(t, learnHandler(h), args)
		if !res.IsError {
			t.Errorf("expected error result for %v", args)
		}
	}
}

func TestMCPCancelLearn(t *testing.T) {
	h := NewHost()
	callTool(t, learnHandler(h), map[string]any{"slot": float64(1)})
	callTool(t, cancelLearnHandler(h), nil)

	h.Queue().Push(midicc.ControlChange(0, 90, 3))
	h.Step(0.001)

	if got := h.Status()[0].Controller; got != 0 {
		t.Errorf("cancelled learn bound slot 1 to %d", got)
	}
}

func TestMCPConnectAndInject(t *testing.T) {
	h := NewHost()

	res := callTool(t, connectHandler(h), map[string]any{"slot": float64(2), "active": false})
	if res.IsError {
		t.Fatalf("connect returned error: %s", resultText(t, res))
	}

	res = callTool(t, injectHandler(h), map[string]any{"messages": "0:127 1:127"})
	if res.IsError {
		t.Fatalf("inject returned error: %s", resultText(t, res))
	}
	h.Step(0.001)

	v := h.Voltages()
	if v[0] != 10 {
		t.Errorf("expected slot 1 at 10V, got %v", v[0])
	}
	if v[1] != 0 {
		t.Errorf("expected disconnected slot 2 to stay at 0V, got %v", v[1])
	}

	res = callTool(t, injectHandler(h), map[string]any{"messages": "bogus"})
	if !res.IsError {
		t.Errorf("expected error result for malformed messages")
	}
}

func TestMCPState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	h := NewHost()

	res := callTool(t, setStateHandler(h, path), map[string]any{
		"state-json": `{"module": {"ccs": [5, 6], "values": [0, 0, 0, 0, 0, 100]}}`,
	})
	if res.IsError {
		t.Fatalf("set state returned error: %s", resultText(t, res))
	}

	res = callTool(t, getStateHandler(h), nil)
	var st HostState
	if err := json.Unmarshal([]byte(resultText(t, res)), &st); err != nil {
		t.Fatalf("failed to unmarshal state: %v", err)
	}
	if st.Module == nil || st.Module.CCs[0] != 5 || st.Module.CCs[1] != 6 || st.Module.Values[5] != 100 {
		t.Errorf("unexpected state %+v", st.Module)
	}

	h2 := NewHost()
	if err := h2.LoadStateFile(path); err != nil {
		t.Fatalf("LoadStateFile failed: %v", err)
	}
	if got := h2.Status()[0].Controller; got != 5 {
		t.Errorf("saved state not written, slot 1 bound to %d", got)
	}

	res = callTool(t, setStateHandler(h, path), map[string]any{"state-json": "{"})
	if !res.IsError || !strings.Contains(resultText(t, res), "unmarshal") {
		t.Errorf("expected unmarshal error result")
	}
}
