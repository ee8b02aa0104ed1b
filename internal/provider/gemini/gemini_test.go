package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 5,
			TotalTokenCount:      15,
		},
	}
}

func TestChat_TextResponse(t *testing.T) {
	var gotModel string
	var gotContents []*genai.Content
	var gotConfig *genai.GenerateContentConfig
	mock := &MockClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotModel, gotContents, gotConfig = model, contents, config
			return textResponse("Hello there!"), nil
		},
	}
	p := New(mock, "gemini-mock", zerolog.Nop())

	resp, err := p.Chat(context.Background(), &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: "old"},
			{Role: provider.RoleSystem, Content: "be brief"},
			{Role: provider.RoleUser, Content: "Hello"},
			{Role: provider.RoleAssistant, Content: "Hi"},
			{Role: provider.RoleUser, Content: "Again"},
		},
		Temperature: 0.5,
		MaxTokens:   256,
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello there!", resp.Text)
	assert.Equal(t, "gemini-mock", resp.Model)
	assert.Equal(t, Name, resp.Provider)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, &provider.Usage{PromptTokens: 10, CompletionTokens: 5}, resp.Usage)
	assert.Len(t, resp.RawContent, 1)

	assert.Equal(t, "gemini-mock", gotModel)
	require.Len(t, gotContents, 3)
	assert.Equal(t, "user", gotContents[0].Role)
	assert.Equal(t, "model", gotContents[1].Role)
	require.NotNil(t, gotConfig.SystemInstruction)
	assert.Equal(t, "be brief", gotConfig.SystemInstruction.Parts[0].Text)
	assert.Equal(t, float32(0.5), *gotConfig.Temperature)
	assert.Equal(t, int32(256), gotConfig.MaxOutputTokens)
	assert.Nil(t, gotConfig.Tools)
}

func TestChat_DeclaresToolsWithoutAdditionalProperties(t *testing.T) {
	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           map[string]any{"path": map[string]any{"type": "string"}},
	}
	var gotConfig *genai.GenerateContentConfig
	mock := &MockClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			gotConfig = config
			return textResponse("ok"), nil
		},
	}
	p := New(mock, "gemini-mock", zerolog.Nop())

	_, err := p.Chat(context.Background(), &provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "read"}},
		Tools:    []tool.Declaration{{Name: "fs__read", Description: "read", InputSchema: schema}},
	})

	require.NoError(t, err)
	require.Len(t, gotConfig.Tools, 1)
	decl := gotConfig.Tools[0].FunctionDeclarations[0]
	assert.Equal(t, "fs__read", decl.Name)
	params, ok := decl.ParametersJsonSchema.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, params, "additionalProperties")
	assert.Contains(t, schema, "additionalProperties", "stored schema untouched")
}

func TestChat_FunctionCallRoundTrip(t *testing.T) {
	mock := &MockClient{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Role: "model", Parts: []*genai.Part{
						{Text: "checking"},
						{FunctionCall: &genai.FunctionCall{Name: "builtin__read_file", Args: map[string]any{"path": "foo.txt"}}},
						{FunctionCall: &genai.FunctionCall{ID: "abc", Name: "builtin__shell"}},
					}},
					FinishReason: genai.FinishReasonStop,
				}},
			}, nil
		},
	}
	p := New(mock, "gemini-mock", zerolog.Nop())

	resp, err := p.Chat(context.Background(), &provider.ChatRequest{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "Read foo.txt"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "checking", resp.Text)
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Nil(t, resp.Usage)
	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, syntheticIDPrefix+"1", resp.ToolCalls[0].ID)
	assert.Equal(t, "builtin__read_file", resp.ToolCalls[0].Name)
	assert.Equal(t, "foo.txt", resp.ToolCalls[0].Input["path"])
	assert.Equal(t, "abc", resp.ToolCalls[1].ID)
	assert.NotNil(t, resp.ToolCalls[1].Input)
	require.Len(t, resp.RawContent, 3)

	// Feed the raw parts and results back as the orchestrator would.
	assistant := provider.Message{Role: provider.RoleAssistant, Content: resp.Text}
	for _, raw := range resp.RawContent {
		assistant.Blocks = append(assistant.Blocks, provider.ContentBlock{Type: provider.BlockRaw, Raw: raw, Origin: Name})
	}
	results := provider.Message{Role: provider.RoleTool, Blocks: []provider.ContentBlock{
		{Type: provider.BlockFunctionResponse, ToolCallID: resp.ToolCalls[0].ID, ToolName: "builtin__read_file", Output: "contents"},
		{Type: provider.BlockFunctionResponse, ToolCallID: "abc", ToolName: "builtin__shell", Output: "(no output)"},
	}}

	contents := toGeminiContents([]provider.Message{assistant, results}, zerolog.Nop())
	require.Len(t, contents, 2)

	assert.Equal(t, "model", contents[0].Role)
	require.Len(t, contents[0].Parts, 3)
	require.NotNil(t, contents[0].Parts[1].FunctionCall)
	assert.Equal(t, "builtin__read_file", contents[0].Parts[1].FunctionCall.Name)

	assert.Equal(t, "user", contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	first := contents[1].Parts[0].FunctionResponse
	require.NotNil(t, first)
	assert.Empty(t, first.ID, "synthetic ids are not sent back")
	assert.Equal(t, "builtin__read_file", first.Name)
	assert.Equal(t, map[string]any{"result": "contents"}, first.Response)
	assert.Equal(t, "abc", contents[1].Parts[1].FunctionResponse.ID)
}

func TestToGeminiContents_IgnoresForeignRawBlocks(t *testing.T) {
	msg := provider.Message{
		Role:    provider.RoleAssistant,
		Content: "flattened",
		Blocks:  []provider.ContentBlock{{Type: provider.BlockRaw, Raw: []byte(`{"type":"tool_use"}`), Origin: "anthropic"}},
	}

	contents := toGeminiContents([]provider.Message{msg, {Role: provider.RoleUser}}, zerolog.Nop())

	require.Len(t, contents, 1, "empty messages are skipped")
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "flattened", contents[0].Parts[0].Text)
}

func TestToGeminiContents_Images(t *testing.T) {
	msg := provider.Message{
		Role:    provider.RoleUser,
		Content: "what is this",
		Blocks: []provider.ContentBlock{
			{Type: provider.BlockImage, ImageURL: "data:image/png;base64,aGVsbG8="},
			{Type: provider.BlockImage, ImageURL: "https://example.com/cat.png"},
		},
	}

	contents := toGeminiContents([]provider.Message{msg}, zerolog.Nop())

	require.Len(t, contents[0].Parts, 3)
	assert.Equal(t, "what is this", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("hello"), contents[0].Parts[1].InlineData.Data)
	require.NotNil(t, contents[0].Parts[2].FileData)
	assert.Equal(t, "https://example.com/cat.png", contents[0].Parts[2].FileData.FileURI)
}

func TestChat_FinishReasons(t *testing.T) {
	tests := []struct {
		name     string
		response *genai.GenerateContentResponse
		code     provider.ErrorCode
		stop     string
	}{
		{
			name: "safety",
			response: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{}, FinishReason: genai.FinishReasonSafety,
			}}},
			code: provider.ErrorCodeContentBlocked,
		},
		{
			name: "prompt blocked",
			response: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			},
			code: provider.ErrorCodeContentBlocked,
		},
		{
			name:     "no candidates",
			response: &genai.GenerateContentResponse{},
			code:     provider.ErrorCodeServer,
		},
		{
			name: "max tokens",
			response: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []*genai.Part{{Text: "partial"}}}, FinishReason: genai.FinishReasonMaxTokens,
			}}},
			stop: "max_tokens",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockClient{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.response, nil
				},
			}
			resp, err := New(mock, "gemini-mock", zerolog.Nop()).Chat(context.Background(), &provider.ChatRequest{
				Messages: []provider.Message{{Role: provider.RoleUser, Content: "hi"}},
			})
			if tt.code != "" {
				require.Error(t, err)
				assert.Equal(t, tt.code, provider.Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stop, resp.StopReason)
			assert.Equal(t, "partial", resp.Text)
		})
	}
}

func TestMapGeminiError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      provider.ErrorCode
		retryable bool
	}{
		{"auth pointer", &genai.APIError{Code: 401, Message: "bad key"}, provider.ErrorCodeAuth, false},
		{"auth value", genai.APIError{Code: 403, Message: "denied"}, provider.ErrorCodeAuth, false},
		{"rate limit", &genai.APIError{Code: 429, Message: "slow down"}, provider.ErrorCodeRateLimit, true},
		{"bad request", &genai.APIError{Code: 400, Message: "bad"}, provider.ErrorCodeInvalidRequest, false},
		{"unavailable", &genai.APIError{Code: 503, Message: "down"}, provider.ErrorCodeServer, true},
		{"deadline", context.DeadlineExceeded, provider.ErrorCodeTimeout, false},
		{"transport", errors.New("connection reset"), provider.ErrorCodeNetwork, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapGeminiError(tt.err)
			assert.Equal(t, tt.code, provider.Classify(err))
			assert.Equal(t, tt.retryable, provider.IsRetryable(err))
			assert.Equal(t, tt.err, errors.Unwrap(err))
		})
	}
	assert.NoError(t, mapGeminiError(nil))
}

func TestChat_NoClient(t *testing.T) {
	p := New(nil, "gemini-mock", zerolog.Nop())

	_, err := p.Chat(context.Background(), &provider.ChatRequest{})

	assert.ErrorIs(t, err, provider.ErrMissingAPIKey)
	assert.Equal(t, provider.ErrorCodeAuth, provider.Classify(err))
	assert.False(t, p.Health(context.Background()))
}

func TestListModels(t *testing.T) {
	mock := &MockClient{
		ListModelsFunc: func(ctx context.Context) ([]ModelInfo, error) {
			return []ModelInfo{{Name: "models/gemini-2.0-flash"}, {Name: "models/gemini-1.5-pro"}}, nil
		},
	}
	p := New(mock, "gemini-2.0-flash", zerolog.Nop())

	models, err := p.ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"gemini-1.5-pro", "gemini-2.0-flash"}, models)
	assert.True(t, p.Health(context.Background()))
	assert.Equal(t, provider.FunctionResponseParts, p.Capability())
}

func TestIsChatModel(t *testing.T) {
	assert.True(t, isChatModel("models/gemini-2.0-flash"))
	assert.False(t, isChatModel("models/gemini-embedding-001"))
	assert.False(t, isChatModel("models/gemini-2.0-flash-live"))
	assert.False(t, isChatModel("models/text-bison"))
}
