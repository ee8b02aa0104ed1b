package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/Cyclone1070/sidecar/internal/provider"
	"github.com/Cyclone1070/sidecar/internal/tool"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// syntheticIDPrefix marks call ids made up locally because Gemini returned
// none. They are never sent back to the API.
const syntheticIDPrefix = "gemini_call_"

// toGeminiContents converts history to Gemini contents. System messages
// must already be removed.
func toGeminiContents(messages []provider.Message, log zerolog.Logger) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if content := messageToGeminiContent(msg, log); content != nil {
			contents = append(contents, content)
		}
	}
	return contents
}

// messageToGeminiContent converts a single message to Gemini Content format.
func messageToGeminiContent(msg provider.Message, log zerolog.Logger) *genai.Content {
	role := "user"
	if msg.Role == provider.RoleAssistant {
		role = "model"
	}

	parts := rawParts(msg, log)
	if len(parts) == 0 {
		parts = functionResponseParts(msg)
	}
	if len(parts) == 0 {
		if text := msg.Text(); text != "" {
			parts = append(parts, genai.NewPartFromText(text))
		}
		parts = append(parts, imageParts(msg)...)
	}

	// Skip empty messages
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}

// rawParts restores parts this adapter stored verbatim on an earlier turn.
func rawParts(msg provider.Message, log zerolog.Logger) []*genai.Part {
	var parts []*genai.Part
	for _, raw := range msg.RawBlocks(Name) {
		var part genai.Part
		if err := json.Unmarshal(raw, &part); err != nil {
			log.Debug().Err(err).Msg("skipping undecodable gemini part")
			continue
		}
		parts = append(parts, &part)
	}
	return parts
}

func functionResponseParts(msg provider.Message) []*genai.Part {
	var parts []*genai.Part
	for _, b := range msg.Blocks {
		if b.Type != provider.BlockFunctionResponse {
			continue
		}
		id := b.ToolCallID
		if strings.HasPrefix(id, syntheticIDPrefix) {
			id = ""
		}
		parts = append(parts, &genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       id,
				Name:     b.ToolName,
				Response: map[string]any{"result": b.Output},
			},
		})
	}
	return parts
}

func imageParts(msg provider.Message) []*genai.Part {
	var parts []*genai.Part
	for _, url := range msg.Images() {
		mimeType, data, ok := provider.SplitDataURL(url)
		if !ok {
			parts = append(parts, &genai.Part{FileData: &genai.FileData{FileURI: url}})
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			continue
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: decoded}})
	}
	return parts
}

// toGeminiConfig builds the generation config for a request.
func toGeminiConfig(system string, req *provider.ChatRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		SafetySettings: defaultSafetySettings(),
		Temperature:    genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(system)}}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: tool.ToGemini(req.Tools)}}
	}
	return config
}

// defaultSafetySettings returns safety settings with BLOCK_NONE for all categories.
func defaultSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockThresholdOff,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockThresholdOff,
		},
	}
}

// fromGeminiResponse converts Gemini response to internal format.
func fromGeminiResponse(resp *genai.GenerateContentResponse, model string) (*provider.ChatResponse, error) {
	if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, &provider.ProviderError{
			Provider:   Name,
			Code:       provider.ErrorCodeContentBlocked,
			Message:    "prompt blocked: " + string(resp.PromptFeedback.BlockReason),
			Underlying: provider.ErrContentBlocked,
		}
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &provider.ProviderError{
			Provider:   Name,
			Code:       provider.ErrorCodeServer,
			Message:    "no candidates in response",
			Underlying: provider.ErrEmptyResponse,
		}
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, &provider.ProviderError{
			Provider:   Name,
			Code:       provider.ErrorCodeContentBlocked,
			Message:    "content blocked by safety filters",
			Underlying: provider.ErrContentBlocked,
		}
	}

	out := &provider.ChatResponse{
		Model:      model,
		Provider:   Name,
		StopReason: stopReason(candidate.FinishReason),
	}
	if usage := resp.UsageMetadata; usage != nil {
		out.Usage = &provider.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
		}
	}

	var text strings.Builder
	if candidate.Content != nil {
		for i, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if raw, err := json.Marshal(part); err == nil {
				out.RawContent = append(out.RawContent, raw)
			}
			if part.FunctionCall != nil {
				out.ToolCalls = append(out.ToolCalls, toToolCall(part.FunctionCall, i))
				continue
			}
			if part.Text != "" && !part.Thought {
				text.WriteString(part.Text)
			}
		}
	}
	out.Text = text.String()
	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_use"
	}
	return out, nil
}

func toToolCall(fc *genai.FunctionCall, index int) provider.ToolCall {
	id := fc.ID
	if id == "" {
		id = syntheticIDPrefix + strconv.Itoa(index)
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return provider.ToolCall{ID: id, Name: fc.Name, Input: args}
}

func stopReason(reason genai.FinishReason) string {
	switch reason {
	case genai.FinishReasonStop:
		return "end_turn"
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	case "":
		return ""
	default:
		return strings.ToLower(string(reason))
	}
}

// mapGeminiError maps Gemini API errors to provider errors.
func mapGeminiError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	found := false
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		apiErr, found = *apiErrPtr, true
	} else if errors.As(err, &apiErr) {
		found = true
	}
	if found {
		perr := provider.StatusError(Name, apiErr.Code, apiErr.Message)
		perr.Underlying = err
		return perr
	}

	perr := &provider.ProviderError{
		Provider:   Name,
		Code:       provider.ErrorCodeNetwork,
		Message:    "network error",
		Underlying: err,
		Retryable:  true,
	}
	if errors.Is(err, context.DeadlineExceeded) {
		perr.Code = provider.ErrorCodeTimeout
		perr.Retryable = false
	} else if errors.Is(err, context.Canceled) {
		perr.Retryable = false
	}
	return perr
}
