package chat

import (
	"context"
	"fmt"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/Cyclone1070/sidecar/internal/event"
	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/tool"
)

// MaxToolTurns is the hard ceiling on backend round trips in one turn.
const MaxToolTurns = 10

// Preview limits for event payloads.
const (
	contentPreviewLen = 500
	outputPreviewLen  = 1000
)

// TurnRequest is one user message sent to a conversation.
type TurnRequest struct {
	ConversationID string // generated when empty
	Message        string
	Images         []string // data: or remote URLs
	Provider       string
	Model          string
	Temperature    *float64
	SystemPrompt   string // used only when the conversation is created
}

// ToolCallRecord is the audit entry of one executed tool call.
type ToolCallRecord struct {
	ToolCallID  string         `json:"tool_call_id"`
	ToolName    string         `json:"tool_name"`
	DisplayName string         `json:"display_name"`
	Input       map[string]any `json:"tool_input"`
	Output      string         `json:"tool_output"`
	DurationMs  int64          `json:"duration_ms"`
	Error       string         `json:"error,omitempty"`
}

// Failed reports whether the call produced an error.
func (r ToolCallRecord) Failed() bool {
	return r.Error != ""
}

// TurnResult is the outcome of one turn.
type TurnResult struct {
	ConversationID    string                 `json:"conversation_id"`
	Response          *provider.ChatResponse `json:"response"`
	ToolCalls         []ToolCallRecord       `json:"tool_calls"`
	TotalInputTokens  int                    `json:"total_input_tokens"`
	TotalOutputTokens int                    `json:"total_output_tokens"`
	Iterations        int                    `json:"iterations"`
}

// Exhausted reports whether the ceiling was hit while the backend still
// wanted tools.
func (r *TurnResult) Exhausted() bool {
	return r.Response != nil && len(r.Response.ToolCalls) > 0
}

// Chat runs a single round trip without executing tools.
func (s *Service) Chat(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	conv, p, model, err := s.begin(req)
	if err != nil {
		return nil, err
	}
	defer conv.mu.Unlock()

	resp, err := s.send(ctx, p, &provider.ChatRequest{
		Messages:    slices.Clone(conv.messages),
		Model:       model,
		Temperature: s.temperatureOr(req.Temperature),
		MaxTokens:   s.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	conv.appendLocked(provider.Message{Role: provider.RoleAssistant, Content: resp.Text})

	in, out := resp.Tokens()
	return &TurnResult{
		ConversationID:    conv.ID,
		Response:          resp,
		ToolCalls:         []ToolCallRecord{},
		TotalInputTokens:  in,
		TotalOutputTokens: out,
		Iterations:        1,
	}, nil
}

// ChatWithTools runs the tool loop: call the backend, execute every
// requested tool in order, feed the results back, and repeat until the
// backend answers with text only or MaxToolTurns is reached.
func (s *Service) ChatWithTools(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	conv, p, model, err := s.begin(req)
	if err != nil {
		return nil, err
	}
	defer conv.mu.Unlock()

	var decls []tool.Declaration
	if s.tools != nil {
		decls = s.tools.Declarations()
	}
	capability := p.Capability()
	temperature := s.temperatureOr(req.Temperature)
	result := &TurnResult{ConversationID: conv.ID, ToolCalls: []ToolCallRecord{}}

	for turn := 0; turn < MaxToolTurns; turn++ {
		s.emit(event.LLMRequestStarted, conv.ID, event.SourceChat, map[string]any{
			"model":    model,
			"provider": p.Name(),
			"turn":     turn,
		})

		start := time.Now()
		resp, err := s.send(ctx, p, &provider.ChatRequest{
			Messages:    slices.Clone(conv.messages),
			Model:       model,
			Temperature: temperature,
			MaxTokens:   s.maxTokens,
			Tools:       decls,
		})
		elapsed := time.Since(start).Milliseconds()
		if err != nil {
			s.emit(event.LLMResponseError, conv.ID, event.SourceChat, map[string]any{
				"error":       err.Error(),
				"error_code":  string(provider.Classify(err)),
				"model":       model,
				"provider":    p.Name(),
				"duration_ms": elapsed,
				"turn":        turn,
			})
			s.log.Warn().Err(err).Str("conversation", conv.ID).Str("provider", p.Name()).Int("turn", turn).Msg("provider call failed")
			return nil, err
		}

		in, out := resp.Tokens()
		result.TotalInputTokens += in
		result.TotalOutputTokens += out
		result.Response = resp
		result.Iterations = turn + 1

		s.emit(event.LLMResponseCompleted, conv.ID, event.SourceChat, map[string]any{
			"model":         resp.Model,
			"provider":      resp.Provider,
			"input_tokens":  in,
			"output_tokens": out,
			"duration_ms":   elapsed,
			"stop_reason":   stopReason(resp),
			"content":       preview(resp.Text, contentPreviewLen),
		})

		if len(resp.ToolCalls) == 0 {
			conv.appendLocked(provider.Message{Role: provider.RoleAssistant, Content: resp.Text})
			return result, nil
		}

		conv.appendLocked(assistantTurn(capability, p.Name(), resp))

		records := make([]ToolCallRecord, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			records = append(records, s.runTool(ctx, conv.ID, call))
		}
		result.ToolCalls = append(result.ToolCalls, records...)

		conv.appendLocked(toolResults(capability, records)...)
	}

	return result, nil
}

// begin resolves the conversation and provider and appends the user
// message. On success the conversation is returned locked.
func (s *Service) begin(req TurnRequest) (*Conversation, provider.Provider, string, error) {
	id := req.ConversationID
	if id == "" {
		id = NewConversationID()
	}
	providerName := req.Provider
	if providerName == "" {
		providerName = s.DefaultProvider()
	}
	if _, err := s.Provider(providerName); err != nil {
		return nil, nil, "", err
	}

	conv := s.store.GetOrCreate(id, providerName, req.SystemPrompt)
	conv.mu.Lock()

	if req.Provider == "" && conv.provider != "" {
		providerName = conv.provider
	}
	p, err := s.Provider(providerName)
	if err != nil {
		conv.mu.Unlock()
		return nil, nil, "", err
	}
	if req.Model != "" {
		conv.model, conv.modelFor = req.Model, providerName
	}
	model := p.DefaultModel()
	if conv.model != "" && conv.modelFor == providerName {
		model = conv.model
	}

	msg := provider.Message{Role: provider.RoleUser, Content: req.Message}
	for _, url := range req.Images {
		msg.Blocks = append(msg.Blocks, provider.ContentBlock{Type: provider.BlockImage, ImageURL: url})
	}
	conv.appendLocked(msg)
	return conv, p, model, nil
}

// runTool executes one call and emits its lifecycle events.
func (s *Service) runTool(ctx context.Context, sessionID string, call provider.ToolCall) ToolCallRecord {
	server, name := tool.ParseQualifiedName(call.Name)
	display := tool.DisplayName(server, name)
	input := call.Input
	if input == nil {
		input = map[string]any{}
	}

	s.emit(event.ToolRequested, sessionID, event.SourceTools, map[string]any{
		"tool_call_id": call.ID,
		"tool_name":    display,
		"tool_input":   input,
	})

	start := time.Now()
	output, errText := s.ExecuteTool(ctx, call.Name, input)
	elapsed := time.Since(start).Milliseconds()

	if errText != "" {
		s.emit(event.ToolError, sessionID, event.SourceTools, map[string]any{
			"tool_call_id": call.ID,
			"tool_name":    display,
			"error":        errText,
			"duration_ms":  elapsed,
		})
		s.log.Warn().Str("conversation", sessionID).Str("tool", display).Str("error", errText).Msg("tool call failed")
	} else {
		s.emit(event.ToolCompleted, sessionID, event.SourceTools, map[string]any{
			"tool_call_id": call.ID,
			"tool_name":    display,
			"output":       preview(output, outputPreviewLen),
			"duration_ms":  elapsed,
		})
	}

	return ToolCallRecord{
		ToolCallID:  call.ID,
		ToolName:    call.Name,
		DisplayName: display,
		Input:       input,
		Output:      output,
		DurationMs:  elapsed,
		Error:       errText,
	}
}

// ExecuteTool dispatches a tool by qualified name. It never fails: the
// output is always text and errText is set when the call did not succeed.
// Local handlers win over external servers.
func (s *Service) ExecuteTool(ctx context.Context, qualified string, input map[string]any) (output, errText string) {
	if s.tools == nil {
		msg := "Error: No tool registry available"
		return msg, msg
	}
	if input == nil {
		input = map[string]any{}
	}
	server, name := tool.ParseQualifiedName(qualified)

	if def, ok := s.tools.Resolve(qualified); ok && def.IsLocal() {
		if err := s.tools.Validate(qualified, input); err != nil {
			return fmt.Sprintf("Error: invalid arguments for tool '%s': %v", qualified, err), err.Error()
		}
		return runHandler(ctx, def.Handler, input)
	}

	if s.external != nil && s.external.IsConnected(server) {
		out, err := s.external.Invoke(ctx, server, name, input)
		if err != nil {
			return "Error executing tool: " + err.Error(), err.Error()
		}
		return out, ""
	}

	msg := fmt.Sprintf("Error: Tool '%s' not found or not connected", qualified)
	return msg, msg
}

func runHandler(ctx context.Context, handler tool.Handler, input map[string]any) (output, errText string) {
	defer func() {
		if r := recover(); r != nil {
			errText = fmt.Sprintf("panic: %v", r)
			output = "Error executing tool: " + errText
		}
	}()

	out, err := handler(ctx, input)
	if err != nil {
		return "Error executing tool: " + err.Error(), err.Error()
	}
	return out, ""
}

func (s *Service) emit(eventType, sessionID, source string, payload map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Emit(eventType, sessionID, source, payload, nil)
}

func stopReason(resp *provider.ChatResponse) string {
	switch {
	case resp.StopReason != "":
		return resp.StopReason
	case len(resp.ToolCalls) > 0:
		return "tool_use"
	default:
		return "end_turn"
	}
}

// preview truncates s to at most n bytes without splitting a rune.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
