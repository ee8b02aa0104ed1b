package gemini

import (
	"context"
	"errors"

	"google.golang.org/genai"
)

// MockClient is a mock implementation of Client for testing.
type MockClient struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	ListModelsFunc      func(ctx context.Context) ([]ModelInfo, error)
}

// GenerateContent calls the mock function if set, otherwise returns an error.
func (m *MockClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.GenerateContentFunc != nil {
		return m.GenerateContentFunc(ctx, model, contents, config)
	}
	return nil, errors.New("GenerateContentFunc not set")
}

// ListModels calls the mock function if set, otherwise returns an error.
func (m *MockClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return nil, errors.New("ListModelsFunc not set")
}
