package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func newMCPServer(h *Host, statePath string) *server.MCPServer {
	s := server.NewMCPServer(
		"MIDI-CC to CV",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	learnTool := mcp.NewTool("midicc_learn",
		mcp.WithDescription("Starts learning a slot: the next controller that changes value is bound to it."),
		mcp.WithNumber("slot", mcp.Required(), mcp.Description("The output slot (1-16).")),
	)
	s.AddTool(learnTool, learnHandler(h))

	cancelTool := mcp.NewTool("midicc_cancel-learn",
		mcp.WithDescription("Stops learning without binding anything."),
	)
	s.AddTool(cancelTool, cancelLearnHandler(h))

	outputsTool := mcp.NewTool("midicc_outputs",
		mcp.WithDescription("Returns the current voltage, controller and connection of every slot."),
	)
	s.AddTool(outputsTool, outputsHandler(h))

	getStateTool := mcp.NewTool("midicc_get-state",
		mcp.WithDescription("Returns the persisted state (mapping, controller values, MIDI input, connections) as JSON."),
	)
	s.AddTool(getStateTool, getStateHandler(h))

	setStateTool := mcp.NewTool("midicc_set-state",
		mcp.WithDescription("Applies a state JSON. Every field is optional; missing fields keep their value."),
		mcp.WithString("state-json", mcp.Required(), mcp.Description("The state in the format returned by midicc_get-state.")),
	)
	s.AddTool(setStateTool, setStateHandler(h, statePath))

	resetTool := mcp.NewTool("midicc_reset",
		mcp.WithDescription("Resets controller values to 0 and the mapping to slot N = CC N-1."),
	)
	s.AddTool(resetTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling reset request.")
		h.Reset()
		return mcp.NewToolResultText("Module reset."), nil
	})

	connectTool := mcp.NewTool("midicc_connect",
		mcp.WithDescription("Marks an output slot as connected or disconnected. Disconnected slots are not processed."),
		mcp.WithNumber("slot", mcp.Required(), mcp.Description("The output slot (1-16).")),
		mcp.WithBoolean("active", mcp.Required(), mcp.Description("Whether the output is connected.")),
	)
	s.AddTool(connectTool, connectHandler(h))

	injectTool := mcp.NewTool("midicc_inject",
		mcp.WithDescription("Queues control changes as if they came from the MIDI input."),
		mcp.WithString("messages", mcp.Required(), mcp.Description("Space separated cc:value or channel/cc:value tokens, e.g. \"10:127 1/74:64\".")),
	)
	s.AddTool(injectTool, injectHandler(h))

	return s
}

func runMCP(h *Host, statePath string) error {
	s := newMCPServer(h, statePath)
	log.Println("Starting MIDI-CC MCP server...")
	return server.ServeStdio(s)
}

func requireSlot(request mcp.CallToolRequest) (int, error) {
	slot, err := request.RequireInt("slot")
	if err != nil {
		return 0, err
	}
	if slot < 1 || slot > 16 {
		return 0, fmt.Errorf("slot must be in range 1–16, got %d", slot)
	}
	return slot - 1, nil
}

func learnHandler(h *Host) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling learn request.")

		slot, err := requireSlot(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := h.Learn(slot); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Learning slot %d. Move a controller to bind it.", slot+1)), nil
	}
}

func cancelLearnHandler(h *Host) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling cancel learn request.")
		h.CancelLearn()
		return mcp.NewToolResultText("Learning cancelled."), nil
	}
}

// SlotStatus is one entry of the midicc_outputs result.
type SlotStatus struct {
	Slot       int     `json:"slot"`
	Controller int     `json:"cc"`
	Voltage    float64 `json:"voltage"`
	Active     bool    `json:"active"`
	Learning   bool    `json:"learning,omitempty"`
}

func outputsHandler(h *Host) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling outputs request.")

		asJson, err := json.MarshalIndent(h.Status(), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal outputs to JSON: %v", err)
		}
		return mcp.NewToolResultText(string(asJson)), nil
	}
}

func getStateHandler(h *Host) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling get state request.")

		st, err := h.State()
		if err != nil {
			return nil, fmt.Errorf("failed to read state: %v", err)
		}
		asJson, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal state to JSON: %v", err)
		}
		return mcp.NewToolResultText(string(asJson)), nil
	}
}

func setStateHandler(h *Host, statePath string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling set state request.")

		stateJson, err := request.RequireString("state-json")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		st, err := decodeState(strings.NewReader(stateJson))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := h.SetState(st); err != nil {
			return nil, fmt.Errorf("failed to apply state: %v", err)
		}
		if err := h.SaveStateFile(statePath); err != nil {
			return nil, fmt.Errorf("failed to save state: %v", err)
		}
		return mcp.NewToolResultText("State applied."), nil
	}
}

func connectHandler(h *Host) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling connect request.")

		slot, err := requireSlot(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		active, err := request.RequireBool("active")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := h.SetActive(slot, active); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Slot %d active=%v.", slot+1, active)), nil
	}
}

func injectHandler(h *Host) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		log.Println("[mcp]Handling inject request.")

		text, err := request.RequireString("messages")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		msgs, err := parseInjectText(text)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		n := inject(h, msgs)
		return mcp.NewToolResultText(fmt.Sprintf("Queued %d of %d messages.", n, len(msgs))), nil
	}
}
