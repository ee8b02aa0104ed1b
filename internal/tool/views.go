package tool

import "google.golang.org/genai"

// AnthropicTool is the Anthropic Messages tool shape.
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// OpenAITool is the OpenAI chat-completions tool shape, also accepted by
// Ollama and OpenAI-compatible local servers.
type OpenAITool struct {
	Type     string         `json:"type"`
	Function OpenAIFunction `json:"function"`
}

// OpenAIFunction is the function part of an OpenAI tool.
type OpenAIFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToAnthropic renders declarations for Anthropic.
func ToAnthropic(decls []Declaration) []AnthropicTool {
	out := make([]AnthropicTool, 0, len(decls))
	for _, d := range decls {
		out = append(out, AnthropicTool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: orEmptyObject(copyMap(d.InputSchema)),
		})
	}
	return out
}

// ToOpenAI renders declarations as OpenAI function tools.
func ToOpenAI(decls []Declaration) []OpenAITool {
	out := make([]OpenAITool, 0, len(decls))
	for _, d := range decls {
		out = append(out, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  orEmptyObject(copyMap(d.InputSchema)),
			},
		})
	}
	return out
}

// ToGemini renders declarations as Gemini function declarations. Gemini
// rejects additionalProperties, so each schema is a stripped copy.
func ToGemini(decls []Declaration) []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		out = append(out, &genai.FunctionDeclaration{
			Name:                 d.Name,
			Description:          d.Description,
			ParametersJsonSchema: orEmptyObject(StripAdditionalProperties(d.InputSchema)),
		})
	}
	return out
}

// AnthropicTools renders every registered tool for Anthropic.
func (r *Registry) AnthropicTools() []AnthropicTool {
	return ToAnthropic(r.Declarations())
}

// OpenAITools renders every registered tool as OpenAI function tools.
func (r *Registry) OpenAITools() []OpenAITool {
	return ToOpenAI(r.Declarations())
}

// GeminiTools renders every registered tool for Gemini.
func (r *Registry) GeminiTools() []*genai.FunctionDeclaration {
	return ToGemini(r.Declarations())
}

func orEmptyObject(schema map[string]any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return schema
}
