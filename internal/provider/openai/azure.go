package openai

import (
	"net/url"

	"github.com/Cyclone1070/sidecar/internal/provider/httpjson"
)

// DefaultAzureAPIVersion is sent when AzureOptions.APIVersion is empty.
const DefaultAzureAPIVersion = "2024-08-01-preview"

var azureModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-35-turbo"}

// AzureOptions configures an Azure OpenAI provider. The client's base URL
// is the resource endpoint.
type AzureOptions struct {
	Client     *httpjson.Client
	Deployment string
	APIVersion string
	HasKey     bool
}

// NewAzure creates a provider that routes each request to
// /openai/deployments/{model}/chat/completions. The model names a deployment.
func NewAzure(opts AzureOptions) *Provider {
	version := opts.APIVersion
	if version == "" {
		version = DefaultAzureAPIVersion
	}
	query := "?api-version=" + url.QueryEscape(version)

	p := New(Options{
		Name:       AzureName,
		Client:     opts.Client,
		Model:      opts.Deployment,
		RequireKey: true,
		HasKey:     opts.HasKey,
	})
	p.chatPath = func(deployment string) string {
		return "/openai/deployments/" + url.PathEscape(deployment) + "/chat/completions" + query
	}
	p.modelsPath = "/openai/models" + query
	p.staticModels = azureModels
	return p
}

// AzureHeaders returns the authentication header for an Azure API key.
func AzureHeaders(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"api-key": apiKey}
}
